package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"shop-service/models"

	"github.com/redis/go-redis/v9"
)

// ErrCartConflict is returned when an optimistic cart update keeps losing to
// concurrent writers.
var ErrCartConflict = errors.New("cart update conflict")

// CartMutator receives the current cart and returns the cart to store.
type CartMutator func(cart models.Cart) (models.Cart, error)

// CartRepository stores one cart per visitor session.
type CartRepository interface {
	Get(ctx context.Context, sessionID string) (models.Cart, error)
	Put(ctx context.Context, sessionID string, cart models.Cart) error
	Delete(ctx context.Context, sessionID string) error
	// Update applies fn atomically with respect to other updates of the
	// same session and returns the stored cart.
	Update(ctx context.Context, sessionID string, fn CartMutator) (models.Cart, error)
	// ClaimPayment records a payment session id as consumed. It returns false
	// if the id was already claimed.
	ClaimPayment(ctx context.Context, paymentSessionID string, ttl time.Duration) (bool, error)
	// ReleasePayment forgets a claim so the payment session can be used again.
	ReleasePayment(ctx context.Context, paymentSessionID string) error
}

const (
	maxUpdateRetries = 20
	retryBaseDelay   = 2 * time.Millisecond
	retryMaxDelay    = 50 * time.Millisecond
)

// RedisCartRepository keeps carts as JSON under cart:session:<id> with a
// sliding TTL.
type RedisCartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCartRepository(client *redis.Client, ttl time.Duration) *RedisCartRepository {
	return &RedisCartRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisCartRepository) getKey(sessionID string) string {
	return fmt.Sprintf("cart:session:%s", sessionID)
}

func (r *RedisCartRepository) getIdemKey(paymentSessionID string) string {
	return "idem:payment:" + paymentSessionID
}

func (r *RedisCartRepository) Get(ctx context.Context, sessionID string) (models.Cart, error) {
	data, err := r.client.Get(ctx, r.getKey(sessionID)).Bytes()
	if err == redis.Nil {
		return models.NewCart(), nil
	}
	if err != nil {
		return nil, err
	}
	return decodeCart(data)
}

func (r *RedisCartRepository) Put(ctx context.Context, sessionID string, cart models.Cart) error {
	if len(cart) == 0 {
		return r.Delete(ctx, sessionID)
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.getKey(sessionID), data, r.ttl).Err()
}

func (r *RedisCartRepository) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, r.getKey(sessionID)).Err()
}

// Update runs fn inside a WATCH/MULTI transaction and retries when another
// writer touched the key in between.
func (r *RedisCartRepository) Update(ctx context.Context, sessionID string, fn CartMutator) (models.Cart, error) {
	key := r.getKey(sessionID)
	var result models.Cart

	txf := func(tx *redis.Tx) error {
		cart := models.NewCart()
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == redis.Nil:
		case err != nil:
			return err
		default:
			if cart, err = decodeCart(data); err != nil {
				return err
			}
		}

		updated, err := fn(cart)
		if err != nil {
			return err
		}

		var payload []byte
		if len(updated) > 0 {
			if payload, err = json.Marshal(updated); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(updated) == 0 {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = updated
		return nil
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			if result == nil {
				result = models.NewCart()
			}
			return result, nil
		}
		if err != redis.TxFailedErr {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay(i)):
		}
	}
	return nil, ErrCartConflict
}

// retryDelay grows exponentially up to retryMaxDelay, with full jitter.
func retryDelay(attempt int) time.Duration {
	d := retryBaseDelay << min(attempt, 5)
	if d > retryMaxDelay {
		d = retryMaxDelay
	}
	return time.Duration(rand.Int64N(int64(d))) + time.Millisecond
}

func (r *RedisCartRepository) ClaimPayment(ctx context.Context, paymentSessionID string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.getIdemKey(paymentSessionID), time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (r *RedisCartRepository) ReleasePayment(ctx context.Context, paymentSessionID string) error {
	return r.client.Del(ctx, r.getIdemKey(paymentSessionID)).Err()
}

func decodeCart(data []byte) (models.Cart, error) {
	cart := models.NewCart()
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	for id, q := range cart {
		if id == 0 || q < 1 {
			delete(cart, id)
		}
	}
	return cart, nil
}

// MemoryCartRepository is an in-process CartRepository for single-instance
// deployments and tests. A single mutex serializes all writers.
type MemoryCartRepository struct {
	mu       sync.Mutex
	carts    map[string]models.Cart
	payments map[string]time.Time
}

func NewMemoryCartRepository() *MemoryCartRepository {
	return &MemoryCartRepository{
		carts:    make(map[string]models.Cart),
		payments: make(map[string]time.Time),
	}
}

func (r *MemoryCartRepository) Get(_ context.Context, sessionID string) (models.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cart, ok := r.carts[sessionID]; ok {
		return cart.Clone(), nil
	}
	return models.NewCart(), nil
}

func (r *MemoryCartRepository) Put(_ context.Context, sessionID string, cart models.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store(sessionID, cart)
	return nil
}

func (r *MemoryCartRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, sessionID)
	return nil
}

func (r *MemoryCartRepository) Update(_ context.Context, sessionID string, fn CartMutator) (models.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := models.NewCart()
	if cart, ok := r.carts[sessionID]; ok {
		current = cart.Clone()
	}
	updated, err := fn(current)
	if err != nil {
		return nil, err
	}
	r.store(sessionID, updated)
	if updated == nil {
		return models.NewCart(), nil
	}
	return updated.Clone(), nil
}

func (r *MemoryCartRepository) ClaimPayment(_ context.Context, paymentSessionID string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if exp, ok := r.payments[paymentSessionID]; ok && now.Before(exp) {
		return false, nil
	}
	r.payments[paymentSessionID] = now.Add(ttl)
	return true, nil
}

func (r *MemoryCartRepository) ReleasePayment(_ context.Context, paymentSessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.payments, paymentSessionID)
	return nil
}

func (r *MemoryCartRepository) store(sessionID string, cart models.Cart) {
	if len(cart) == 0 {
		delete(r.carts, sessionID)
		return
	}
	r.carts[sessionID] = cart.Clone()
}
