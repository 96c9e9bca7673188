package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"wadigest/pkg/config"
)

func TestIsReady(t *testing.T) {
	t.Parallel()

	svc := &Service{
		checkStates:   map[string]checkState{"greenapi": {}},
		channelStates: map[string]channelState{"telegram": {Running: true}},
	}
	if svc.isReady() {
		t.Fatal("expected not ready before the first successful check")
	}

	svc.checkStates["greenapi"] = checkState{LastOKAt: time.Now().UTC()}
	if !svc.isReady() {
		t.Fatal("expected ready with running channel and healthy dependency")
	}

	svc.channelStates["telegram"] = channelState{Running: false, Error: "stopped"}
	if svc.isReady() {
		t.Fatal("expected not ready when a channel stopped")
	}

	svc.channelStates["telegram"] = channelState{Running: true}
	svc.checkStates["greenapi"] = checkState{LastOKAt: time.Now().UTC(), Error: "boom"}
	if svc.isReady() {
		t.Fatal("expected not ready when a dependency has an error")
	}
}

func TestCheckHealthRecordsEveryDependency(t *testing.T) {
	t.Parallel()

	green := &toggledHealth{}
	llm := &toggledHealth{err: errors.New("quota")}
	svc, err := NewService(config.Default(), Deps{
		Summaries: &fakeSummarizer{},
		Checks:    map[string]HealthChecker{"greenapi": green, "provider": llm},
	}, nil, nil)
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}

	if err := svc.checkHealth(context.Background()); err == nil {
		t.Fatal("expected provider failure")
	}
	status := svc.currentStatus("x")
	if status.Checks["greenapi"].LastOKAt.IsZero() || status.Checks["greenapi"].Error != "" {
		t.Fatalf("greenapi state = %+v", status.Checks["greenapi"])
	}
	if status.Checks["provider"].Error != "quota" {
		t.Fatalf("provider state = %+v", status.Checks["provider"])
	}

	llm.set(nil)
	if err := svc.checkHealth(context.Background()); err != nil {
		t.Fatalf("checkHealth error: %v", err)
	}
	if !svc.isReady() {
		t.Fatal("expected ready after recovery")
	}
}

func TestNewServiceRequiresSummarizer(t *testing.T) {
	t.Parallel()

	if _, err := NewService(config.Default(), Deps{}, nil, nil); err == nil {
		t.Fatal("expected error without summary service")
	}
	if _, err := NewService(nil, Deps{Summaries: &fakeSummarizer{}}, nil, nil); err == nil {
		t.Fatal("expected error without config")
	}
}
