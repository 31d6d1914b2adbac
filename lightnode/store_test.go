package lightnode

import (
	"testing"
	"time"

	"qnetclient/storage"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	reg := &NodeRegistration{
		NodeID:         "node-1",
		WalletAddress:  "qnet1abc",
		DeviceID:       "device-1",
		PushKind:       PushKindPolling,
		RegisteredAt:   time.Unix(1_700_000_000, 0).UTC(),
		NextPingTime:   time.Unix(1_700_014_400, 0).UTC(),
		NextPingWindow: 5 * time.Minute,
	}
	if err := store.Save(reg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil || loaded.NodeID != "node-1" || loaded.PushKind != PushKindPolling {
		t.Fatalf("unexpected registration %+v", loaded)
	}
	if !loaded.NextPingTime.Equal(reg.NextPingTime) {
		t.Fatalf("next ping time changed across round trip")
	}
}

func TestStoreLoadWithoutRecord(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected no registration, got %+v", loaded)
	}
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	if err := store.Save(&NodeRegistration{NodeID: "node-1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(); err != nil {
		t.Fatalf("delete: %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load after delete: %v", err)
	}
	if loaded != nil {
		t.Fatalf("registration survived delete")
	}
}
