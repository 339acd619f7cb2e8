package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	jobdomain "github.com/kittypup/kittypup/internal/job/domain"
)

const (
	// TaskTypeGenerate is the queue task kind for a generation delivery.
	TaskTypeGenerate = "generation:dispatch"

	// queueName keeps generation deliveries on their own queue so other
	// task kinds cannot starve them.
	queueName = "generation"

	// completedRetention keeps finished tasks around for inspection.
	completedRetention = 24 * time.Hour

	// deliveryTimeout bounds a single delivery attempt to the worker.
	deliveryTimeout = 30 * time.Second
)

func encodeMessage(msg jobdomain.DispatchMessage) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode dispatch message: %w", err)
	}
	return payload, nil
}

func decodeMessage(payload []byte) (jobdomain.DispatchMessage, error) {
	var msg jobdomain.DispatchMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return jobdomain.DispatchMessage{}, fmt.Errorf("decode dispatch message: %w", err)
	}
	if msg.JobID == 0 {
		return jobdomain.DispatchMessage{}, fmt.Errorf("dispatch message missing job id")
	}
	return msg, nil
}
