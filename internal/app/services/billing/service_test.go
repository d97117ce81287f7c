package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lampstack/versekeeper/internal/app/domain/user"
	"github.com/lampstack/versekeeper/internal/app/storage/memory"
)

func seedUser(t *testing.T, store *memory.Store) user.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{
		Username: "anna", Email: "anna@example.com", PasswordHash: "x", CurrentRank: "Nicodemus",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestHandleWebhook_ActivateAndCancel(t *testing.T) {
	store := memory.New()
	u := seedUser(t, store)
	svc := New(store, []byte("hook-secret"), nil)
	ctx := context.Background()

	payload := []byte(fmt.Sprintf(`{"type":%q,"user_id":%d}`, EventCheckoutCompleted, u.ID))
	updated, err := svc.HandleWebhook(ctx, svc.Sign(payload), payload)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !updated.IsPremium {
		t.Fatal("expected premium after activation")
	}

	// Re-delivery of the same event is harmless.
	if _, err := svc.HandleWebhook(ctx, svc.Sign(payload), payload); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	payload = []byte(fmt.Sprintf(`{"type":%q,"user_id":%d}`, EventSubscriptionDeleted, u.ID))
	updated, err = svc.HandleWebhook(ctx, svc.Sign(payload), payload)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.IsPremium {
		t.Fatal("expected premium cleared after cancellation")
	}

	payload = []byte(fmt.Sprintf(`{"type":%q,"user_id":%d}`, EventSubscriptionUpdated, u.ID))
	updated, err = svc.HandleWebhook(ctx, svc.Sign(payload), payload)
	if err != nil {
		t.Fatalf("subscription update: %v", err)
	}
	if !updated.IsPremium {
		t.Fatal("expected premium after subscription update")
	}
}

func TestHandleWebhook_RejectsBadSignature(t *testing.T) {
	store := memory.New()
	u := seedUser(t, store)
	svc := New(store, []byte("hook-secret"), nil)

	payload := []byte(fmt.Sprintf(`{"type":%q,"user_id":%d}`, EventCheckoutCompleted, u.ID))
	if _, err := svc.HandleWebhook(context.Background(), "deadbeef", payload); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}

	if got, err := store.GetUser(context.Background(), u.ID); err != nil || got.IsPremium {
		t.Fatalf("rejected webhook must not change state: %+v err=%v", got, err)
	}
}

func TestHandleWebhook_BadPayloads(t *testing.T) {
	store := memory.New()
	u := seedUser(t, store)
	svc := New(store, []byte("hook-secret"), nil)
	ctx := context.Background()

	unknown := []byte(fmt.Sprintf(`{"type":"invoice.paid","user_id":%d}`, u.ID))
	if _, err := svc.HandleWebhook(ctx, svc.Sign(unknown), unknown); !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}

	missing := []byte(fmt.Sprintf(`{"type":%q,"user_id":99999}`, EventCheckoutCompleted))
	if _, err := svc.HandleWebhook(ctx, svc.Sign(missing), missing); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	noUser := []byte(fmt.Sprintf(`{"type":%q}`, EventCheckoutCompleted))
	if _, err := svc.HandleWebhook(ctx, svc.Sign(noUser), noUser); err == nil {
		t.Fatal("expected error for missing user_id")
	}

	garbage := []byte(`{not json`)
	if _, err := svc.HandleWebhook(ctx, svc.Sign(garbage), garbage); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
