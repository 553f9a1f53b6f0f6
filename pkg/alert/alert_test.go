package alert

import (
	"testing"

	"github.com/soundprediction/strata/pkg/config"
)

func TestDisabledAlerterIsNoOp(t *testing.T) {
	a := NewEmailAlerter(config.AlertConfig{Enabled: false})
	if err := a.Alert("subject", "message"); err != nil {
		t.Errorf("Alert() with alerting disabled = %v, want nil", err)
	}
}

func TestNoOpAlerter(t *testing.T) {
	var a Alerter = &NoOpAlerter{}
	if err := a.Alert("subject", "message"); err != nil {
		t.Errorf("Alert() = %v, want nil", err)
	}
}
