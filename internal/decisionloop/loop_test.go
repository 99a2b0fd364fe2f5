package decisionloop

import (
	"testing"

	"github.com/arenahq/bot-arena/internal/models"
)

func TestParseActionsHandlesMarkdownFence(t *testing.T) {
	raw := "```json\n[{\"action\":\"HOLD\",\"reasoning\":\"waiting\"}]\n```"
	actions, err := parseActions(raw)
	if err != nil {
		t.Fatalf("parseActions: %v", err)
	}
	if len(actions) != 1 || actions[0].Action != models.ActionHold {
		t.Fatalf("unexpected actions: %+v", actions)
	}
}

func TestParseActionsHandlesSingleObject(t *testing.T) {
	actions, err := parseActions(`{"action":"LONG","symbol":"BTCUSDT","size":100,"leverage":5}`)
	if err != nil {
		t.Fatalf("parseActions: %v", err)
	}
	if len(actions) != 1 || actions[0].Symbol != "BTCUSDT" {
		t.Fatalf("unexpected actions: %+v", actions)
	}
}

func TestParseActionsRejectsGarbage(t *testing.T) {
	if _, err := parseActions("not json at all"); err == nil {
		t.Fatal("expected an error for unparsable response")
	}
}

func TestRunToolKelly(t *testing.T) {
	out, err := RunTool(ToolKelly, nil, map[string]float64{"win_probability": 0.6, "win_loss_ratio": 2})
	if err != nil {
		t.Fatalf("RunTool: %v", err)
	}
	if out["fraction"].(float64) <= 0 {
		t.Fatalf("expected positive kelly fraction, got %v", out["fraction"])
	}
}
