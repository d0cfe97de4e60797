package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"field-sales-platform/backend/internal/entity/domain"
)

const (
	tenantA int64 = 100
	tenantB int64 = 200
	agent   int64 = 10
	other   int64 = 11
)

// setPayload returns a Mutation writing payload and keeping the entity active.
func setPayload(payload string) domain.Mutation {
	return func(current *domain.Entity) (domain.Change, error) {
		c := domain.Change{Payload: json.RawMessage(payload), Active: true}
		if current != nil {
			c.OwnerUserID = current.OwnerUserID
		}
		return c, nil
	}
}

func ownedBy(owner int64, payload string) domain.Mutation {
	return func(*domain.Entity) (domain.Change, error) {
		return domain.Change{Payload: json.RawMessage(payload), Active: true, OwnerUserID: &owner}, nil
	}
}

func mustCreate(t *testing.T, s Store, tenantID int64, typ domain.Type, m domain.Mutation) *domain.Entity {
	t.Helper()
	res, err := s.TryApply(context.Background(), ApplyRequest{TenantID: tenantID, Type: typ, Actor: agent, Mutate: m})
	require.NoError(t, err)
	require.Equal(t, domain.Applied, res.Status)
	return res.Entity
}

func pullAll(t *testing.T, s Store, q ChangeQuery) []*domain.Entity {
	t.Helper()
	until, err := s.ServerTime(context.Background())
	require.NoError(t, err)
	q.Until = until
	items, err := s.ListChangedSince(context.Background(), q)
	require.NoError(t, err)
	return items
}

// runStoreContract exercises the Store contract against the store returned by newStore.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		created := mustCreate(t, s, tenantA, domain.TypeClient, setPayload(`{"name":"Acme"}`))
		assert.Positive(t, created.ID)
		assert.EqualValues(t, 1, created.Version)
		assert.True(t, created.Active)
		assert.Equal(t, agent, created.CreatedBy)
		assert.Equal(t, agent, created.UpdatedBy)
		assert.Equal(t, created.CreatedAt, created.UpdatedAt)

		got, err := s.Get(context.Background(), tenantA, domain.TypeClient, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.JSONEq(t, `{"name":"Acme"}`, string(got.Payload))

		missing, err := s.Get(context.Background(), tenantA, domain.TypeClient, created.ID+1000)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("create with non-zero expected version is refused", func(t *testing.T) {
		s := newStore(t)
		_, err := s.TryApply(context.Background(), ApplyRequest{TenantID: tenantA, Type: domain.TypeClient, ExpectedVersion: 3, Actor: agent, Mutate: setPayload(`{}`)})
		assert.ErrorIs(t, err, ErrCreateWithVersion)
	})

	t.Run("versions increase by one per applied mutation", func(t *testing.T) {
		s := newStore(t)
		e := mustCreate(t, s, tenantA, domain.TypeProduct, setPayload(`{"sku":"A"}`))
		prev := e
		for i := 2; i <= 6; i++ {
			res, err := s.TryApply(context.Background(), ApplyRequest{
				TenantID: tenantA, Type: domain.TypeProduct, ID: e.ID, ExpectedVersion: prev.Version,
				Actor: other, Mutate: setPayload(fmt.Sprintf(`{"sku":"A","rev":%d}`, i)),
			})
			require.NoError(t, err)
			require.Equal(t, domain.Applied, res.Status)
			assert.EqualValues(t, i, res.Entity.Version)
			assert.True(t, res.Entity.UpdatedAt.After(prev.UpdatedAt), "each version needs a later updatedAt")
			assert.Equal(t, other, res.Entity.UpdatedBy)
			assert.Equal(t, agent, res.Entity.CreatedBy)
			prev = res.Entity
		}
	})

	t.Run("stale version reports conflict with current state", func(t *testing.T) {
		s := newStore(t)
		e := mustCreate(t, s, tenantA, domain.TypeClient, setPayload(`{"phone":"1"}`))
		_, err := s.TryApply(context.Background(), ApplyRequest{TenantID: tenantA, Type: domain.TypeClient, ID: e.ID, ExpectedVersion: 1, Actor: agent, Mutate: setPayload(`{"phone":"2"}`)})
		require.NoError(t, err)

		called := false
		res, err := s.TryApply(context.Background(), ApplyRequest{
			TenantID: tenantA, Type: domain.TypeClient, ID: e.ID, ExpectedVersion: 1, Actor: agent,
			Mutate: func(*domain.Entity) (domain.Change, error) {
				called = true
				return domain.Change{Payload: json.RawMessage(`{"phone":"3"}`), Active: true}, nil
			},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.VersionConflict, res.Status)
		assert.False(t, called, "mutation must not run on conflict")
		require.NotNil(t, res.Entity)
		assert.EqualValues(t, 2, res.Entity.Version)
		assert.JSONEq(t, `{"phone":"2"}`, string(res.Entity.Payload))
	})

	t.Run("concurrent applies with the same expected version admit one winner", func(t *testing.T) {
		s := newStore(t)
		e := mustCreate(t, s, tenantA, domain.TypeOrder, ownedBy(agent, `{"total":0}`))
		const writers = 16
		results := make([]*ApplyResult, writers)
		errs := make([]error, writers)
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				results[i], errs[i] = s.TryApply(context.Background(), ApplyRequest{
					TenantID: tenantA, Type: domain.TypeOrder, ID: e.ID, ExpectedVersion: 1, Actor: agent,
					Mutate: ownedBy(agent, fmt.Sprintf(`{"total":%d}`, i)),
				})
			}(i)
		}
		close(start)
		wg.Wait()

		var winner *domain.Entity
		applied := 0
		for i := range results {
			require.NoError(t, errs[i])
			if results[i].Status == domain.Applied {
				applied++
				winner = results[i].Entity
			}
		}
		require.Equal(t, 1, applied)
		for i := range results {
			if results[i].Status == domain.VersionConflict {
				assert.EqualValues(t, 2, results[i].Entity.Version)
				assert.JSONEq(t, string(winner.Payload), string(results[i].Entity.Payload))
			}
		}
		final, err := s.Get(context.Background(), tenantA, domain.TypeOrder, e.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, final.Version)
	})

	t.Run("update of a missing entity is not found", func(t *testing.T) {
		s := newStore(t)
		res, err := s.TryApply(context.Background(), ApplyRequest{
			TenantID: tenantA, Type: domain.TypeVisit, ID: 9999, ExpectedVersion: 1, Actor: agent,
			Mutate: func(*domain.Entity) (domain.Change, error) {
				t.Error("mutation must not run for a missing entity")
				return domain.Change{}, nil
			},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.NotFound, res.Status)
		assert.Nil(t, res.Entity)
	})

	t.Run("tenants are isolated even when ids collide", func(t *testing.T) {
		s := newStore(t)
		a := mustCreate(t, s, tenantA, domain.TypeClient, setPayload(`{"owner":"A"}`))

		got, err := s.Get(context.Background(), tenantB, domain.TypeClient, a.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		res, err := s.TryApply(context.Background(), ApplyRequest{TenantID: tenantB, Type: domain.TypeClient, ID: a.ID, ExpectedVersion: 1, Actor: agent, Mutate: setPayload(`{"owner":"B"}`)})
		require.NoError(t, err)
		assert.Equal(t, domain.NotFound, res.Status)

		assert.Empty(t, pullAll(t, s, ChangeQuery{TenantID: tenantB, Type: domain.TypeClient}))

		unchanged, err := s.Get(context.Background(), tenantA, domain.TypeClient, a.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, unchanged.Version)
		assert.JSONEq(t, `{"owner":"A"}`, string(unchanged.Payload))
	})

	t.Run("retried create with the same client local id is deduplicated", func(t *testing.T) {
		s := newStore(t)
		req := ApplyRequest{TenantID: tenantA, Type: domain.TypeVisit, Actor: agent, ClientLocalID: "local-1", Mutate: ownedBy(agent, `{"note":"x"}`)}
		first, err := s.TryApply(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, first.Duplicate)

		second, err := s.TryApply(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, domain.Applied, second.Status)
		assert.True(t, second.Duplicate)
		assert.Equal(t, first.Entity.ID, second.Entity.ID)
		assert.EqualValues(t, 1, second.Entity.Version)

		req.Actor = other
		third, err := s.TryApply(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, third.Duplicate)
		assert.NotEqual(t, first.Entity.ID, third.Entity.ID)
	})

	t.Run("concurrent retried creates insert once", func(t *testing.T) {
		s := newStore(t)
		const retries = 8
		results := make([]*ApplyResult, retries)
		var wg sync.WaitGroup
		for i := 0; i < retries; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := s.TryApply(context.Background(), ApplyRequest{TenantID: tenantA, Type: domain.TypeClient, Actor: agent, ClientLocalID: "dup", Mutate: setPayload(`{}`)})
				assert.NoError(t, err)
				results[i] = res
			}(i)
		}
		wg.Wait()
		fresh := 0
		for _, r := range results {
			require.NotNil(t, r)
			if !r.Duplicate {
				fresh++
			}
			assert.Equal(t, results[0].Entity.ID, r.Entity.ID)
		}
		assert.Equal(t, 1, fresh)
		assert.Len(t, pullAll(t, s, ChangeQuery{TenantID: tenantA, Type: domain.TypeClient}), 1)
	})

	t.Run("retried create of a reassigned entity is not found for the former owner", func(t *testing.T) {
		s := newStore(t)
		own := agent
		req := ApplyRequest{TenantID: tenantA, Type: domain.TypeOrder, Actor: agent, ClientLocalID: "o-1", OwnerScope: &own, Mutate: ownedBy(agent, `{"total":1}`)}
		first, err := s.TryApply(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, domain.Applied, first.Status)

		moved, err := s.TryApply(context.Background(), ApplyRequest{TenantID: tenantA, Type: domain.TypeOrder, ID: first.Entity.ID, ExpectedVersion: 1, Actor: agent, Mutate: ownedBy(other, `{"total":99}`)})
		require.NoError(t, err)
		require.Equal(t, domain.Applied, moved.Status)

		retry, err := s.TryApply(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, domain.NotFound, retry.Status)
		assert.Nil(t, retry.Entity)
		assert.False(t, retry.Duplicate)

		req.OwnerScope = nil
		unscoped, err := s.TryApply(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, unscoped.Duplicate)
		assert.Equal(t, first.Entity.ID, unscoped.Entity.ID)
	})

	t.Run("owner scope hides other agents' entities", func(t *testing.T) {
		s := newStore(t)
		order := mustCreate(t, s, tenantA, domain.TypeOrder, ownedBy(agent, `{}`))
		scope := other
		res, err := s.TryApply(context.Background(), ApplyRequest{TenantID: tenantA, Type: domain.TypeOrder, ID: order.ID, ExpectedVersion: 5, OwnerScope: &scope, Actor: other, Mutate: ownedBy(other, `{}`)})
		require.NoError(t, err)
		assert.Equal(t, domain.NotFound, res.Status, "scoped caller must not learn about the version")

		own := agent
		res, err = s.TryApply(context.Background(), ApplyRequest{TenantID: tenantA, Type: domain.TypeOrder, ID: order.ID, ExpectedVersion: 1, OwnerScope: &own, Actor: agent, Mutate: ownedBy(agent, `{"x":1}`)})
		require.NoError(t, err)
		assert.Equal(t, domain.Applied, res.Status)

		product := mustCreate(t, s, tenantA, domain.TypeProduct, setPayload(`{}`))
		res, err = s.TryApply(context.Background(), ApplyRequest{TenantID: tenantA, Type: domain.TypeProduct, ID: product.ID, ExpectedVersion: 1, OwnerScope: &scope, Actor: other, Mutate: setPayload(`{"p":1}`)})
		require.NoError(t, err)
		assert.Equal(t, domain.Applied, res.Status, "tenant-wide types ignore owner scope")
	})

	t.Run("list filters owner-scoped types by owner", func(t *testing.T) {
		s := newStore(t)
		mine := mustCreate(t, s, tenantA, domain.TypeRoute, ownedBy(agent, `{}`))
		mustCreate(t, s, tenantA, domain.TypeRoute, ownedBy(other, `{}`))
		mustCreate(t, s, tenantA, domain.TypeClient, setPayload(`{}`))

		owner := agent
		routes := pullAll(t, s, ChangeQuery{TenantID: tenantA, Type: domain.TypeRoute, OwnerUserID: &owner})
		require.Len(t, routes, 1)
		assert.Equal(t, mine.ID, routes[0].ID)

		assert.Len(t, pullAll(t, s, ChangeQuery{TenantID: tenantA, Type: domain.TypeRoute}), 2)
		assert.Len(t, pullAll(t, s, ChangeQuery{TenantID: tenantA, Type: domain.TypeClient, OwnerUserID: &owner}), 1)
	})

	t.Run("soft delete is a versioned mutation and stays visible to pulls", func(t *testing.T) {
		s := newStore(t)
		e := mustCreate(t, s, tenantA, domain.TypeClient, setPayload(`{"n":1}`))
		res, err := s.TryApply(context.Background(), ApplyRequest{
			TenantID: tenantA, Type: domain.TypeClient, ID: e.ID, ExpectedVersion: 1, Actor: agent,
			Mutate: func(cur *domain.Entity) (domain.Change, error) {
				return domain.Change{Payload: cur.Payload, Active: false}, nil
			},
		})
		require.NoError(t, err)
		require.Equal(t, domain.Applied, res.Status)
		assert.False(t, res.Entity.Active)
		assert.EqualValues(t, 2, res.Entity.Version)

		since := e.UpdatedAt
		items := pullAll(t, s, ChangeQuery{TenantID: tenantA, Type: domain.TypeClient, Since: &since})
		require.Len(t, items, 1)
		assert.False(t, items[0].Active)
	})

	t.Run("mutation errors pass through and write nothing", func(t *testing.T) {
		s := newStore(t)
		e := mustCreate(t, s, tenantA, domain.TypeClient, setPayload(`{"n":1}`))
		_, err := s.TryApply(context.Background(), ApplyRequest{
			TenantID: tenantA, Type: domain.TypeClient, ID: e.ID, ExpectedVersion: 1, Actor: agent,
			Mutate: func(*domain.Entity) (domain.Change, error) { return domain.Change{}, domain.Reject("credit limit") },
		})
		var rej *domain.RejectError
		require.True(t, errors.As(err, &rej))
		assert.Equal(t, "credit limit", rej.Reason)

		got, err := s.Get(context.Background(), tenantA, domain.TypeClient, e.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, got.Version)
	})

	t.Run("pull windows deliver every write exactly once", func(t *testing.T) {
		s := newStore(t)
		const entities = 5
		ids := make([]int64, entities)
		for i := range ids {
			ids[i] = mustCreate(t, s, tenantA, domain.TypeClient, setPayload(`{"rev":0}`)).ID
		}

		ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
		defer cancel()
		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				version := int64(1)
				for ctx.Err() == nil {
					res, err := s.TryApply(context.Background(), ApplyRequest{
						TenantID: tenantA, Type: domain.TypeClient, ID: id, ExpectedVersion: version, Actor: agent,
						Mutate: setPayload(fmt.Sprintf(`{"rev":%d}`, version)),
					})
					if !assert.NoError(t, err) {
						return
					}
					if res.Status == domain.Applied {
						version = res.Entity.Version
					}
				}
			}(id)
		}

		seen := map[string]int{}
		latest := map[int64]int64{}
		var cursor *time.Time
		pull := func() {
			until, err := s.ServerTime(context.Background())
			require.NoError(t, err)
			items, err := s.ListChangedSince(context.Background(), ChangeQuery{TenantID: tenantA, Type: domain.TypeClient, Since: cursor, Until: until})
			require.NoError(t, err)
			for _, e := range items {
				seen[fmt.Sprintf("%d@%d", e.ID, e.Version)]++
				if e.Version > latest[e.ID] {
					latest[e.ID] = e.Version
				}
			}
			cursor = &until
		}
		for ctx.Err() == nil {
			pull()
			time.Sleep(5 * time.Millisecond)
		}
		wg.Wait()
		time.Sleep(settleForTest)
		pull()

		for state, n := range seen {
			assert.Equalf(t, 1, n, "state %s delivered %d times", state, n)
		}
		for _, id := range ids {
			final, err := s.Get(context.Background(), tenantA, domain.TypeClient, id)
			require.NoError(t, err)
			assert.Equalf(t, final.Version, latest[id], "entity %d: final version not delivered", id)
		}
	})
}
