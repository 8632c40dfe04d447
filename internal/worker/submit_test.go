package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arforge/internal/models"
	"arforge/internal/tasks"
)

func submitTask(t *testing.T, productID int64) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(tasks.SubmitPayload{ProductID: productID})
	require.NoError(t, err)
	return asynq.NewTask(tasks.TypeGenerationSubmit, payload)
}

func newSubmitFixture(gw *fakeGateway) (SubmitDeps, *fakeTaskStore, *fakeProductStore, *fakeJobClient, *fakeNotifier) {
	taskStore := newFakeTaskStore()
	productStore := newFakeProductStore(&models.Product{
		ID:                    42,
		Name:                  "Walnut Desk",
		ModelGenerationStatus: models.GenerationPhaseNone,
	})
	jobs := &fakeJobClient{}
	notifier := &fakeNotifier{}
	deps := SubmitDeps{
		Gateway:  gw,
		Tasks:    taskStore,
		Products: productStore,
		Jobs:     jobs,
		Notify:   notifier,
	}
	return deps, taskStore, productStore, jobs, notifier
}

func TestSubmitRecordsTaskAndEnqueuesFirstPoll(t *testing.T) {
	gw := &fakeGateway{submitID: "task-new"}
	deps, taskStore, productStore, jobs, _ := newSubmitFixture(gw)
	handler := HandleGenerationSubmit(deps)

	require.NoError(t, handler(context.Background(), submitTask(t, 42)))

	task, err := taskStore.GetTaskByTaskID(context.Background(), "task-new")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusQueued, task.Status)
	assert.Equal(t, int64(42), task.ProductID)

	require.Len(t, jobs.polls, 1)
	assert.Equal(t, "task-new", jobs.polls[0].taskID)
	assert.Zero(t, jobs.polls[0].delay, "first poll runs immediately")

	assert.Equal(t, models.GenerationPhaseSubmitting, productStore.phase(42))
}

func TestSubmitUnknownProductIsNotRetried(t *testing.T) {
	gw := &fakeGateway{submitID: "task-new"}
	deps, _, _, jobs, notifier := newSubmitFixture(gw)
	handler := HandleGenerationSubmit(deps)

	err := handler(context.Background(), submitTask(t, 999))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, jobs.polls)
	assert.Empty(t, notifier.events)
}

func TestSubmitGatewayFailureIsRetried(t *testing.T) {
	gw := &fakeGateway{submitErr: fmt.Errorf("503 from service")}
	deps, _, productStore, jobs, notifier := newSubmitFixture(gw)
	deps.retryCount = retryCountFunc(0)
	handler := HandleGenerationSubmit(deps)

	err := handler(context.Background(), submitTask(t, 42))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, jobs.polls)
	assert.Empty(t, notifier.events)
	// phase stays submitting until the outcome settles
	assert.Equal(t, models.GenerationPhaseSubmitting, productStore.phase(42))
}

func TestSubmitExhaustedAttemptsSettleAsFailed(t *testing.T) {
	gw := &fakeGateway{submitErr: fmt.Errorf("503 from service")}
	deps, _, productStore, _, notifier := newSubmitFixture(gw)
	deps.retryCount = retryCountFunc(tasks.MaxSubmitAttempts - 1) // final attempt
	handler := HandleGenerationSubmit(deps)

	err := handler(context.Background(), submitTask(t, 42))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	assert.Equal(t, models.GenerationPhaseFailed, productStore.phase(42))
	require.Len(t, notifier.events, 1)
	assert.True(t, notifier.events[0].failed)
}
