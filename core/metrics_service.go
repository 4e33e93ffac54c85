package core

import (
	"context"
	"log"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Counter keys in the configured cache.
const (
	loginSuccessKey  = "auth:metrics:login:success"
	loginFailureKey  = "auth:metrics:login:failure"
	verifySuccessKey = "auth:metrics:verify:success"
	verifyFailureKey = "auth:metrics:verify:failure"
)

// AuthCounters is the read-back shape exposed on the status endpoint.
type AuthCounters struct {
	LoginSuccess  int64 `json:"login_success"`
	LoginFailure  int64 `json:"login_failure"`
	VerifySuccess int64 `json:"verify_success"`
	VerifyFailure int64 `json:"verify_failure"`
}

// AuthMetrics keeps best-effort login/verification counters in redis.
// A counter error never fails the request; a nil *AuthMetrics is a no-op.
type AuthMetrics struct {
	redis *redis.Client
}

func NewAuthMetrics(client *redis.Client) *AuthMetrics {
	return &AuthMetrics{redis: client}
}

func (m *AuthMetrics) LoginSuccess(ctx context.Context)  { m.incr(ctx, loginSuccessKey) }
func (m *AuthMetrics) LoginFailure(ctx context.Context)  { m.incr(ctx, loginFailureKey) }
func (m *AuthMetrics) VerifySuccess(ctx context.Context) { m.incr(ctx, verifySuccessKey) }
func (m *AuthMetrics) VerifyFailure(ctx context.Context) { m.incr(ctx, verifyFailureKey) }

func (m *AuthMetrics) incr(ctx context.Context, key string) {
	if m == nil || m.redis == nil {
		return
	}
	if err := m.redis.Incr(ctx, key).Err(); err != nil {
		log.Printf("auth metrics: incr %s failed: %v", key, err)
	}
}

// Snapshot reads all counters. Missing keys read as zero.
func (m *AuthMetrics) Snapshot(ctx context.Context) (AuthCounters, error) {
	var out AuthCounters
	if m == nil || m.redis == nil {
		return out, nil
	}
	vals, err := m.redis.MGet(ctx, loginSuccessKey, loginFailureKey, verifySuccessKey, verifyFailureKey).Result()
	if err != nil {
		return out, err
	}
	targets := []*int64{&out.LoginSuccess, &out.LoginFailure, &out.VerifySuccess, &out.VerifyFailure}
	for i, v := range vals {
		if i >= len(targets) {
			break
		}
		if s, ok := v.(string); ok {
			if n, perr := strconv.ParseInt(s, 10, 64); perr == nil {
				*targets[i] = n
			}
		}
	}
	return out, nil
}
