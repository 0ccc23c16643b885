package scheduler

import (
	"encoding/json"
	"fmt"

	"dealflow_backend/internal/leads/domain"
	"dealflow_backend/internal/leads/evaluation"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskEvaluationQuick = "leads:evaluation:quick"

const TaskEvaluationFull = "leads:evaluation:full"

// evaluationMaxRetry bounds redelivery; after it the task is archived.
const evaluationMaxRetry = 2

type EvaluationPayload struct {
	LeadID   string `json:"leadId"`
	TenantID string `json:"tenantId"`
	Tier     string `json:"tier"`
	Trigger  string `json:"trigger"`
}

// TaskTypeFor maps a tier onto its task type.
func TaskTypeFor(tier domain.EvaluationTier) (string, error) {
	switch tier {
	case domain.TierQuick:
		return TaskEvaluationQuick, nil
	case domain.TierFull:
		return TaskEvaluationFull, nil
	}
	return "", fmt.Errorf("unknown evaluation tier %q", tier)
}

func NewEvaluationTask(payload EvaluationPayload) (*asynq.Task, error) {
	taskType, err := TaskTypeFor(domain.EvaluationTier(payload.Tier))
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data, asynq.MaxRetry(evaluationMaxRetry)), nil
}

func ParseEvaluationPayload(task *asynq.Task) (EvaluationPayload, error) {
	var payload EvaluationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return EvaluationPayload{}, err
	}
	return payload, nil
}

// Job converts the payload into a runner job.
func (p EvaluationPayload) Job() (evaluation.Job, error) {
	leadID, err := uuid.Parse(p.LeadID)
	if err != nil {
		return evaluation.Job{}, err
	}
	tenantID, err := uuid.Parse(p.TenantID)
	if err != nil {
		return evaluation.Job{}, err
	}
	tier := domain.EvaluationTier(p.Tier)
	if !tier.Valid() {
		return evaluation.Job{}, fmt.Errorf("unknown evaluation tier %q", p.Tier)
	}
	return evaluation.Job{
		TenantID: tenantID,
		LeadID:   leadID,
		Tier:     tier,
		Trigger:  domain.EvaluationTrigger(p.Trigger),
	}, nil
}
