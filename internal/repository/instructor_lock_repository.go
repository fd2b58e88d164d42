package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	appErrors "github.com/noah-isme/formador-scheduler/pkg/errors"
)

const instructorLockPrefix = "lock:instructor:"

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// InstructorLock is a held set of per-instructor locks.
type InstructorLock struct {
	Token string
	Keys  []string
}

// InstructorLockRepository serialises check-and-create per instructor with Redis SET NX PX.
// A nil client grants every lock; single-node deployments then rely on the database
// exclusion constraint alone.
type InstructorLockRepository struct {
	client redis.UniversalClient
}

// NewInstructorLockRepository constructs the repository.
func NewInstructorLockRepository(client redis.UniversalClient) *InstructorLockRepository {
	return &InstructorLockRepository{client: client}
}

// Acquire takes every instructor's lock or none. Keys are taken in sorted order so two
// requests for overlapping sets cannot deadlock each other.
func (r *InstructorLockRepository) Acquire(ctx context.Context, instructorIDs []string, ttl time.Duration) (*InstructorLock, error) {
	ids := append([]string(nil), instructorIDs...)
	sort.Strings(ids)
	lock := &InstructorLock{Token: uuid.NewString()}
	if r.client == nil {
		return lock, nil
	}

	for _, id := range ids {
		key := instructorLockPrefix + id
		ok, err := r.client.SetNX(ctx, key, lock.Token, ttl).Result()
		if err != nil {
			r.release(context.Background(), lock)
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if !ok {
			r.release(context.Background(), lock)
			return nil, appErrors.Clone(appErrors.ErrLockNotAcquired, fmt.Sprintf("instructor %s is being scheduled by another request", id))
		}
		lock.Keys = append(lock.Keys, key)
	}
	return lock, nil
}

// Release drops the locks still owned by lock's token.
func (r *InstructorLockRepository) Release(ctx context.Context, lock *InstructorLock) error {
	if r.client == nil || lock == nil {
		return nil
	}
	return r.release(ctx, lock)
}

func (r *InstructorLockRepository) release(ctx context.Context, lock *InstructorLock) error {
	var firstErr error
	for _, key := range lock.Keys {
		if err := releaseLockScript.Run(ctx, r.client, []string{key}, lock.Token).Err(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("release lock %s: %w", key, err)
		}
	}
	return firstErr
}
