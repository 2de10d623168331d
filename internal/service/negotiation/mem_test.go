package negotiation

import (
	"context"
	"errors"
	"sync"

	"skillswap/internal/model"
)

// memStore is an in-memory UnitOfWork. Transactions are serialized and
// work on a copy that is committed only when fn succeeds, so two
// transactions never interleave here.
type memStore struct {
	mu    sync.Mutex
	state memState
	fail  map[string]error
}

type job struct {
	topic       string
	aggregateID int64
	payload     any
}

type memState struct {
	users    map[int64]model.User
	posts    map[int64]model.Post
	offers   map[int64]model.Offer
	counters map[int64]model.CounterOffer
	jobs     []job
	nextID   int64
}

func (s memState) clone() memState {
	out := memState{
		users:    make(map[int64]model.User, len(s.users)),
		posts:    make(map[int64]model.Post, len(s.posts)),
		offers:   make(map[int64]model.Offer, len(s.offers)),
		counters: make(map[int64]model.CounterOffer, len(s.counters)),
		jobs:     append([]job(nil), s.jobs...),
		nextID:   s.nextID,
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.posts {
		out.posts[k] = v
	}
	for k, v := range s.offers {
		out.offers[k] = v
	}
	for k, v := range s.counters {
		out.counters[k] = v
	}
	return out
}

func newMemStore() *memStore {
	return &memStore{
		state: memState{
			users:    map[int64]model.User{},
			posts:    map[int64]model.Post{},
			offers:   map[int64]model.Offer{},
			counters: map[int64]model.CounterOffer{},
			nextID:   100,
		},
		fail: map[string]error{},
	}
}

func (m *memStore) Do(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	tx := &memTx{s: &work, fail: m.fail}
	err := fn(ctx, Repos{
		Users:         memUsers{tx},
		Posts:         memPosts{tx},
		Offers:        memOffers{tx},
		CounterOffers: memCounters{tx},
		Jobs:          memJobs{tx},
	})
	if err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) jobs(topic string) []job {
	var out []job
	for _, j := range m.snapshot().jobs {
		if j.topic == topic {
			out = append(out, j)
		}
	}
	return out
}

type memTx struct {
	s    *memState
	fail map[string]error
}

func (t *memTx) check(op string) error {
	return t.fail[op]
}

func (t *memTx) id() int64 {
	t.s.nextID++
	return t.s.nextID
}

type memUsers struct{ *memTx }

func (u memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	user, ok := u.s.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &user, nil
}

func (u memUsers) ReserveForProject(_ context.Context, ids ...int64) (int64, error) {
	if err := u.check("users.reserve"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		user, ok := u.s.users[id]
		if ok && user.Available {
			user.Available = false
			u.s.users[id] = user
			n++
		}
	}
	return n, nil
}

type memPosts struct{ *memTx }

func (p memPosts) GetByID(_ context.Context, id int64) (*model.Post, error) {
	post, ok := p.s.posts[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &post, nil
}

func (p memPosts) MarkUnavailable(_ context.Context, id int64) error {
	if err := p.check("posts.unavailable"); err != nil {
		return err
	}
	post := p.s.posts[id]
	post.Available = false
	p.s.posts[id] = post
	return nil
}

type memOffers struct{ *memTx }

func (o memOffers) Create(_ context.Context, offer *model.Offer) error {
	offer.ID = o.id()
	o.s.offers[offer.ID] = *offer
	return nil
}

func (o memOffers) GetByID(_ context.Context, id int64) (*model.Offer, error) {
	offer, ok := o.s.offers[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &offer, nil
}

func (o memOffers) GetByCounterOfferID(_ context.Context, counterOfferID int64) (*model.Offer, error) {
	for _, offer := range o.s.offers {
		if offer.CounterOfferID != nil && *offer.CounterOfferID == counterOfferID {
			return &offer, nil
		}
	}
	return nil, model.ErrNotFound
}

func (o memOffers) HasPending(_ context.Context, senderID, postID int64) (bool, error) {
	for _, offer := range o.s.offers {
		if offer.SenderID == senderID && offer.PostID == postID && offer.Status == model.OfferPending {
			return true, nil
		}
	}
	return false, nil
}

func (o memOffers) LockPending(_ context.Context, id int64) (bool, error) {
	offer, ok := o.s.offers[id]
	return ok && offer.Status == model.OfferPending, nil
}

func (o memOffers) Transition(_ context.Context, id int64, countered bool, to model.OfferStatus) (bool, error) {
	if err := o.check("offers.transition"); err != nil {
		return false, err
	}
	offer, ok := o.s.offers[id]
	if !ok || offer.Status != model.OfferPending || offer.IsCountered != countered {
		return false, nil
	}
	offer.Status = to
	o.s.offers[id] = offer
	return true, nil
}

func (o memOffers) AttachCounterOffer(_ context.Context, id, counterOfferID int64) (bool, error) {
	offer, ok := o.s.offers[id]
	if !ok || offer.Status != model.OfferPending || offer.IsCountered {
		return false, nil
	}
	offer.IsCountered = true
	offer.CounterOfferID = &counterOfferID
	o.s.offers[id] = offer
	return true, nil
}

func (o memOffers) DetachCounterOffer(_ context.Context, id int64) (bool, error) {
	offer, ok := o.s.offers[id]
	if !ok || offer.Status != model.OfferPending || !offer.IsCountered {
		return false, nil
	}
	offer.IsCountered = false
	offer.CounterOfferID = nil
	o.s.offers[id] = offer
	return true, nil
}

func (o memOffers) UpdateTerms(ctx context.Context, id int64, u TermsUpdate) (bool, error) {
	offer, ok := o.s.offers[id]
	if !ok || offer.Status != model.OfferPending {
		return false, nil
	}
	return true, o.SetTerms(ctx, id, u)
}

func (o memOffers) SetTerms(_ context.Context, id int64, u TermsUpdate) error {
	if err := o.check("offers.set_terms"); err != nil {
		return err
	}
	offer := o.s.offers[id]
	applyTerms(&offer, u)
	o.s.offers[id] = offer
	return nil
}

type memCounters struct{ *memTx }

func (c memCounters) Create(_ context.Context, co *model.CounterOffer) error {
	co.ID = c.id()
	c.s.counters[co.ID] = *co
	return nil
}

func (c memCounters) GetByID(_ context.Context, id int64) (*model.CounterOffer, error) {
	co, ok := c.s.counters[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &co, nil
}

func (c memCounters) Update(_ context.Context, id int64, u TermsUpdate) error {
	co, ok := c.s.counters[id]
	if !ok {
		return model.ErrNotFound
	}
	applyCounterTerms(&co, u)
	c.s.counters[id] = co
	return nil
}

func (c memCounters) Delete(_ context.Context, id int64) (bool, error) {
	if _, ok := c.s.counters[id]; !ok {
		return false, nil
	}
	delete(c.s.counters, id)
	for oid, offer := range c.s.offers {
		if offer.CounterOfferID != nil && *offer.CounterOfferID == id {
			offer.CounterOfferID = nil
			c.s.offers[oid] = offer
		}
	}
	return true, nil
}

func (c memCounters) List(_ context.Context, limit, offset int) ([]model.CounterOffer, error) {
	var out []model.CounterOffer
	for _, co := range c.s.counters {
		out = append(out, co)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memJobs struct{ *memTx }

func (j memJobs) Enqueue(_ context.Context, topic string, aggregateID int64, payload any) error {
	if err := j.check("jobs." + topic); err != nil {
		return err
	}
	j.s.jobs = append(j.s.jobs, job{topic: topic, aggregateID: aggregateID, payload: payload})
	return nil
}

// memViews answers read views from the committed state.
type memViews struct{ m *memStore }

func (v memViews) ReceivedPendingOffers(_ context.Context, receiverID int64) ([]model.OfferView, error) {
	var out []model.OfferView
	for _, o := range v.m.snapshot().offers {
		if o.ReceiverID == receiverID && o.Status == model.OfferPending {
			out = append(out, model.OfferView{ID: o.ID, Message: o.Message})
		}
	}
	return out, nil
}

func (v memViews) ReceivedOffer(_ context.Context, offerID, receiverID int64) (*model.OfferView, error) {
	o, ok := v.m.snapshot().offers[offerID]
	if !ok || o.ReceiverID != receiverID {
		return nil, model.ErrNotFound
	}
	return &model.OfferView{ID: o.ID, Message: o.Message}, nil
}

func (v memViews) counters(match func(model.Offer) bool, counterOfferID *int64) []model.CounterOfferView {
	s := v.m.snapshot()
	var out []model.CounterOfferView
	for _, o := range s.offers {
		if o.CounterOfferID == nil || o.Status != model.OfferPending || !match(o) {
			continue
		}
		if counterOfferID != nil && *o.CounterOfferID != *counterOfferID {
			continue
		}
		c := s.counters[*o.CounterOfferID]
		out = append(out, model.CounterOfferView{ID: c.ID, OfferID: o.ID, Message: c.Message})
	}
	return out
}

func (v memViews) CounterOffersForSender(_ context.Context, senderID int64, id *int64) ([]model.CounterOfferView, error) {
	return v.counters(func(o model.Offer) bool { return o.SenderID == senderID }, id), nil
}

func (v memViews) CounterOffersByReceiver(_ context.Context, receiverID int64, id *int64) ([]model.CounterOfferView, error) {
	return v.counters(func(o model.Offer) bool { return o.ReceiverID == receiverID && o.IsCountered }, id), nil
}

var errInjected = errors.New("injected failure")
