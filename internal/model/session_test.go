package model

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
)

// An explicit refusal must bind cleanly: the consent check lives in the
// service layer and needs to see the false value, not a binding error.
func TestBeginSessionRequestBindsExplicitFalse(t *testing.T) {
	var refused BeginSessionRequest
	body := []byte(`{"accept_instructions": false, "fullscreen_acquired": false}`)
	if err := binding.JSON.BindBody(body, &refused); err != nil {
		t.Fatalf("explicit false failed binding: %v", err)
	}
	if refused.AcceptInstructions || refused.FullscreenAcquired {
		t.Fatal("false values must survive binding")
	}

	var accepted BeginSessionRequest
	body = []byte(`{"accept_instructions": true, "fullscreen_acquired": true}`)
	if err := binding.JSON.BindBody(body, &accepted); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if !accepted.AcceptInstructions || !accepted.FullscreenAcquired {
		t.Fatal("true values must survive binding")
	}
}
