package reconsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"

	"bitbucket.org/storyfount/finance_backend/config"
	"bitbucket.org/storyfount/finance_backend/models"
	"bitbucket.org/storyfount/finance_backend/utils"
)

const monthLockTTL = 5 * time.Minute

// Only one reconciliation-and-sync pass may run per month at a time;
// different months are independent. Falls back to a process-local lock
// when Redis is not connected (dev, tests).
var localMonthLocks sync.Map

func acquireMonthLock(ctx context.Context, key models.MonthKey) (release func(), err error) {
	name := "reconsync:" + key.String()

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, name, monthLockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, utils.ErrorSyncInProgress
		}
		if err != nil {
			return nil, err
		}
		return func() {
			_ = lock.Release(context.Background())
		}, nil
	}

	if _, loaded := localMonthLocks.LoadOrStore(name, struct{}{}); loaded {
		return nil, utils.ErrorSyncInProgress
	}
	return func() {
		localMonthLocks.Delete(name)
	}, nil
}
