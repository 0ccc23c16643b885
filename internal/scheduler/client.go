package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"dealflow_backend/internal/leads/domain"
	"dealflow_backend/internal/leads/evaluation"
	"dealflow_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues evaluation tiers on asynq and inspects or cancels them by
// their unique task ID.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queue:     queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return errors.Join(c.client.Close(), c.inspector.Close())
}

// rerunSuffix names the single follow-up task queued behind an active run.
const rerunSuffix = ":rerun"

// EnqueueEvaluation queues a tier. A tier that is already pending keeps its
// task; an active one gets one follow-up task so the change that prompted
// this call is evaluated after the run that may have missed it. An archived
// task from an exhausted earlier run is replaced.
func (c *Client) EnqueueEvaluation(ctx context.Context, tenantID, leadID uuid.UUID, tier domain.EvaluationTier, trigger domain.EvaluationTrigger) error {
	task, err := NewEvaluationTask(EvaluationPayload{
		LeadID:   leadID.String(),
		TenantID: tenantID.String(),
		Tier:     string(tier),
		Trigger:  string(trigger),
	})
	if err != nil {
		return err
	}

	taskID := evaluation.TaskKey(leadID, tier)
	existing, err := c.enqueueUnique(ctx, task, taskID)
	if err != nil || !needsFollowUp(existing) {
		return err
	}
	_, err = c.enqueueUnique(ctx, task, taskID+rerunSuffix)
	return err
}

// enqueueUnique enqueues task under taskID and returns the state of the
// task that already held the ID, or zero when this call queued it.
func (c *Client) enqueueUnique(ctx context.Context, task *asynq.Task, taskID string) (asynq.TaskState, error) {
	_, err := c.client.EnqueueContext(ctx, task, asynq.TaskID(taskID), asynq.Queue(c.queue))
	if err == nil {
		return 0, nil
	}
	if !errors.Is(err, asynq.ErrTaskIDConflict) {
		return 0, err
	}

	info, infoErr := c.inspector.GetTaskInfo(c.queue, taskID)
	if infoErr != nil {
		// The holder finished between the two calls.
		return 0, nil
	}
	if info.State != asynq.TaskStateArchived {
		return info.State, nil
	}
	if err := c.inspector.DeleteTask(c.queue, taskID); err != nil {
		return 0, err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.TaskID(taskID), asynq.Queue(c.queue))
	return 0, err
}

// needsFollowUp reports whether the task holding a tier's ID may already
// have read the lead.
func needsFollowUp(state asynq.TaskState) bool {
	return state == asynq.TaskStateActive
}

// CancelEvaluation removes a waiting task or signals an active one, along
// with any follow-up queued behind it.
func (c *Client) CancelEvaluation(_ context.Context, leadID uuid.UUID, tier domain.EvaluationTier) (bool, error) {
	taskID := evaluation.TaskKey(leadID, tier)
	followUp, err := c.cancelTask(taskID + rerunSuffix)
	if err != nil {
		return false, err
	}
	cancelled, err := c.cancelTask(taskID)
	return cancelled || followUp, err
}

func (c *Client) cancelTask(taskID string) (bool, error) {
	info, err := c.inspector.GetTaskInfo(c.queue, taskID)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	switch info.State {
	case asynq.TaskStateActive:
		return true, c.inspector.CancelProcessing(taskID)
	case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateRetry:
		return true, c.inspector.DeleteTask(c.queue, taskID)
	default:
		return false, nil
	}
}

// TierState reports whether a tier is queued, running or idle. A pending
// follow-up counts as queued once the main task is gone.
func (c *Client) TierState(_ context.Context, leadID uuid.UUID, tier domain.EvaluationTier) (domain.TierState, error) {
	taskID := evaluation.TaskKey(leadID, tier)
	state, err := c.taskState(taskID)
	if err != nil || state != domain.TierIdle {
		return state, err
	}
	return c.taskState(taskID + rerunSuffix)
}

func (c *Client) taskState(taskID string) (domain.TierState, error) {
	info, err := c.inspector.GetTaskInfo(c.queue, taskID)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return domain.TierIdle, nil
	}
	if err != nil {
		return domain.TierIdle, err
	}
	return tierStateOf(info.State), nil
}

func tierStateOf(state asynq.TaskState) domain.TierState {
	switch state {
	case asynq.TaskStateActive:
		return domain.TierRunning
	case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateRetry:
		return domain.TierQueued
	default:
		return domain.TierIdle
	}
}

var _ evaluation.Dispatcher = (*Client)(nil)

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}

// NewRedisClient opens a plain go-redis client on the scheduler's Redis, for
// the event relay and the unread-count cache.
func NewRedisClient(cfg config.SchedulerConfig) (*redis.Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}
