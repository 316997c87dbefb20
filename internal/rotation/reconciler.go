package rotation

import (
	"context"
	"time"

	"linkguard/internal/kit"
	"linkguard/pkg/logx"
)

// HandleStore tracks the most recently published announcement. Settings
// implements it; tests substitute a fake.
type HandleStore interface {
	LastMessage() (kit.MessageRef, bool)
	SetLastMessage(ref kit.MessageRef)
	ClearLastMessage()
}

// Reconciler publishes the rendered announcement into the target channel,
// either editing the previous message in place or deleting it and sending
// a fresh one.
type Reconciler struct {
	adapter     kit.Adapter
	log         logx.Logger
	callTimeout time.Duration
}

func NewReconciler(adapter kit.Adapter, callTimeout time.Duration, log logx.Logger) *Reconciler {
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}
	return &Reconciler{adapter: adapter, callTimeout: callTimeout, log: log}
}

var publishOptions = &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}

// Publish reconciles text against the previously published message:
//
//   - no prior message: send fresh, record the handle
//   - prior + edit mode: edit in place; on failure fall through to replace
//     for this cycle only
//   - prior + replace mode (or edit fallback): delete the old message
//     best-effort, clear the handle regardless, then send fresh
//
// The handle is cleared before sending so a failed send can never leave it
// pointing at a deleted message.
func (r *Reconciler) Publish(ctx context.Context, target kit.ChatTarget, mode UpdateMode, text string, store HandleStore) error {
	prior, hasPrior := store.LastMessage()

	if hasPrior && mode == ModeEdit {
		editCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		err := r.adapter.EditText(editCtx, prior, text, publishOptions)
		cancel()
		if err == nil {
			r.log.Info("edited announcement in place", logx.Int("message_id", prior.MessageID))
			return nil
		}
		r.log.Error("edit failed, falling back to replace", logx.Int("message_id", prior.MessageID), logx.Err(err))
	}

	if hasPrior {
		delCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		err := r.adapter.DeleteMessage(delCtx, prior)
		cancel()
		if err != nil {
			r.log.Error("failed to delete previous announcement", logx.Int("message_id", prior.MessageID), logx.Err(err))
		} else {
			r.log.Info("deleted previous announcement", logx.Int("message_id", prior.MessageID))
		}
		store.ClearLastMessage()
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	ref, err := r.adapter.SendText(sendCtx, target, text, publishOptions)
	if err != nil {
		r.log.Error("failed to publish announcement", logx.Err(err))
		return err
	}
	store.SetLastMessage(ref)
	r.log.Info("published announcement", logx.Int("message_id", ref.MessageID))
	return nil
}
