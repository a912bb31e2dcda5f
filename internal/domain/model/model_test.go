package model

import (
	"testing"
	"time"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Andhra Pradesh", "Andhra Pradesh"},
		{"a.b#c$d/e[f]g", "a_b_c_d_e_f_g"},
		{"+919876543210", "+919876543210"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeKey(tt.in); got != tt.want {
			t.Errorf("SanitizeKey(%q) = %q, ожидалось %q", tt.in, got, tt.want)
		}
	}
}

func TestIdentityValidate(t *testing.T) {
	valid := Identity{UserType: UserFarmer, State: "AP", District: "Guntur", Phone: "9876543210"}
	if err := valid.Validate(); err != nil {
		t.Errorf("валидная идентичность отклонена: %v", err)
	}

	tests := []Identity{
		{UserType: "admin", State: "AP", District: "Guntur", Phone: "9876543210"},
		{UserType: UserFarmer, State: "", District: "Guntur", Phone: "9876543210"},
		{UserType: UserBuyer, State: "AP", District: "Guntur", Phone: ""},
	}
	for _, id := range tests {
		if err := id.Validate(); err == nil {
			t.Errorf("Validate(%+v): ожидалась ошибка", id)
		}
	}
}

func TestIdentityPath(t *testing.T) {
	id := Identity{UserType: UserFarmer, State: "Andhra.Pradesh", District: "Guntur", Phone: "9876543210"}
	want := "users/farmer/Andhra_Pradesh/Guntur/9876543210"
	if got := id.Path(); got != want {
		t.Errorf("Path() = %q, ожидалось %q", got, want)
	}
}

func TestObjectStorePath(t *testing.T) {
	id := Identity{UserType: UserFarmer, State: "AP", District: "Guntur", Phone: "9876543210"}
	got := id.ObjectStorePath("land_record", ".jpg", 1700000000000)
	want := "documents/AP/Guntur/9876543210/land_record_9876543210_1700000000000.jpg"
	if got != want {
		t.Errorf("ObjectStorePath() = %q, ожидалось %q", got, want)
	}
}

func TestSetContentHashOnce(t *testing.T) {
	a := &Artifact{ID: "a1"}
	if err := a.SetContentHash("abc"); err != nil {
		t.Fatalf("первая запись хэша: %v", err)
	}
	if err := a.SetContentHash("def"); err == nil {
		t.Error("повторная запись хэша должна быть отклонена")
	}
	if a.ContentHash != "abc" {
		t.Errorf("хэш изменён повторной записью: %q", a.ContentHash)
	}
	if err := (&Artifact{ID: "a2"}).SetContentHash(""); err == nil {
		t.Error("пустой хэш должен быть отклонён")
	}
}

func TestUploadRecordUsable(t *testing.T) {
	tests := []struct {
		name string
		rec  UploadRecord
		want bool
	}{
		{"успех с реальной ссылкой", UploadRecord{State: UploadSucceeded, Reference: "cid123"}, true},
		{"плейсхолдер не пригоден", UploadRecord{State: UploadSucceeded, Reference: "unpinned_1", Placeholder: true}, false},
		{"провал не пригоден", UploadRecord{State: UploadFailed, Reference: "cid123"}, false},
		{"успех без ссылки", UploadRecord{State: UploadSucceeded}, false},
	}
	for _, tt := range tests {
		if got := tt.rec.Usable(); got != tt.want {
			t.Errorf("%s: Usable() = %v, ожидалось %v", tt.name, got, tt.want)
		}
	}
}

func TestHashesMatch(t *testing.T) {
	rec := VerificationRecord{LocalHash: "aa", RemoteHash: "aa"}
	if !rec.HashesMatch() {
		t.Error("одинаковые хэши: HashesMatch() = false")
	}
	rec.RemoteHash = "bb"
	if rec.HashesMatch() {
		t.Error("разные хэши: HashesMatch() = true")
	}
	empty := VerificationRecord{}
	if empty.HashesMatch() {
		t.Error("пустые хэши не считаются совпадением")
	}
}

func TestProfilePatchApply(t *testing.T) {
	now := time.Now().UTC()
	profile := &UserDocumentProfile{
		Name:           "Ravi",
		DocumentHash:   "oldhash",
		ObjectStoreURL: "https://store/old",
	}

	patch := &ProfilePatch{
		DocumentHash:    Ptr("newhash"),
		ContentVerified: Ptr(true),
		LastVerifiedAt:  &now,
	}
	patch.Apply(profile, now)

	// Названные поля обновлены
	if profile.DocumentHash != "newhash" {
		t.Errorf("DocumentHash = %q, ожидалось newhash", profile.DocumentHash)
	}
	if !profile.ContentVerified {
		t.Error("ContentVerified не установлен")
	}
	// Не названные поля не тронуты
	if profile.Name != "Ravi" {
		t.Errorf("Name затёрт слиянием: %q", profile.Name)
	}
	if profile.ObjectStoreURL != "https://store/old" {
		t.Errorf("ObjectStoreURL затёрт слиянием: %q", profile.ObjectStoreURL)
	}
	if !profile.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, ожидалось %v", profile.UpdatedAt, now)
	}
}

func TestProfilePatchFields(t *testing.T) {
	patch := &ProfilePatch{
		DocumentHash:   Ptr("h1"),
		LedgerVerified: Ptr(true),
	}
	fields := patch.Fields()

	if len(fields) != 2 {
		t.Fatalf("количество полей = %d, ожидалось 2", len(fields))
	}
	if fields["document_hash"] != "h1" {
		t.Errorf("document_hash = %v", fields["document_hash"])
	}
	if fields["ledger_verified"] != true {
		t.Errorf("ledger_verified = %v", fields["ledger_verified"])
	}
	if _, ok := fields["content_store_cid"]; ok {
		t.Error("незаданное поле попало в карту")
	}
}
