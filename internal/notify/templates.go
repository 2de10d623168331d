package notify

// Template names a notification email.
type Template string

const (
	OfferReceived         Template = "offer_received"
	CounterOfferReceived  Template = "counter_offer_received"
	OfferAccepted         Template = "offer_accepted"
	CounterOfferAccepted  Template = "counter_offer_accepted"
	OfferRejected         Template = "offer_rejected"
	CounterOfferRejected  Template = "counter_offer_rejected"
	CounterOfferWithdrawn Template = "counter_offer_withdrawn"
	DeadlineMissed        Template = "deadline_missed"
)

type templateDef struct {
	subject string
	body    string
}

const layoutHead = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #2a9d8f; padding-bottom: 10px; margin-bottom: 20px; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header"><h1>SkillSwap</h1></div>
    <h2>Hi {{.Name}},</h2>
`

const layoutFoot = `
    <div class="footer">You are receiving this because you have an active SkillSwap account.</div>
</body>
</html>`

var templates = map[Template]templateDef{
	OfferReceived: {
		subject: "You received a new offer!",
		body: `<p>{{.SenderFirstName}} offers their {{.SenderSkill}} skill in exchange for your {{.ReceiverSkill}} skill.</p>
    <p>Log in to review, counter, accept or reject the offer.</p>`,
	},
	CounterOfferReceived: {
		subject: "Your offer was countered",
		body: `<p>{{.CounterSenderFirstName}} sent a counter offer on your offer #{{.OfferID}}.</p>
    <p>Review the new terms and accept or reject them.</p>`,
	},
	OfferAccepted: {
		subject: "Your offer was accepted!",
		body: `<p>{{.OtherFirstName}} accepted the offer. You will exchange {{.SenderSkill}} for {{.ReceiverSkill}}.</p>
    <p>Your chat room <strong>{{.RoomID}}</strong> is ready. Start chatting!</p>`,
	},
	CounterOfferAccepted: {
		subject: "Your counter offer was accepted!",
		body: `<p>{{.OtherFirstName}} accepted the counter offer. You will exchange {{.SenderSkill}} for {{.ReceiverSkill}}.</p>
    <p>Your chat room <strong>{{.RoomID}}</strong> is ready. Start chatting!</p>`,
	},
	OfferRejected: {
		subject: "Your offer was rejected",
		body:    `<p>{{.OtherFirstName}} rejected your offer #{{.OfferID}}. Don't give up, there are more posts waiting for you.</p>`,
	},
	CounterOfferRejected: {
		subject: "Your counter offer was rejected",
		body:    `<p>{{.OtherFirstName}} rejected your counter offer on offer #{{.OfferID}}. The negotiation is closed.</p>`,
	},
	CounterOfferWithdrawn: {
		subject: "A counter offer was withdrawn",
		body:    `<p>{{.OtherFirstName}} withdrew their counter offer on offer #{{.OfferID}}. Your original offer is pending again.</p>`,
	},
	DeadlineMissed: {
		subject: "You missed a project deadline",
		body: `<p>You did not submit your project link for project #{{.ProjectID}} before the deadline, so the project was closed.</p>
    {{if .Banned}}<p>This was your third missed deadline. Your account is banned from making or accepting offers until {{.BannedTill}}.</p>
    {{else}}<p>This is warning {{.Warnings}} of 2. A third missed deadline bans your account for 7 days.</p>{{end}}`,
	},
}
