package storage

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"testing"
)

func serviceAccountJSON(t *testing.T, key *rsa.PrivateKey, email string) []byte {
	t.Helper()
	pemKey := pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	data, err := json.Marshal(map[string]string{
		"client_email": email,
		"private_key":  string(pemKey),
	})
	if err != nil {
		t.Fatalf("marshal key json: %v", err)
	}
	return data
}

func TestServiceAccountSignerSignsVerifiably(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := NewServiceAccountSigner(serviceAccountJSON(t, key, "photos@pureclean.test"))
	if err != nil {
		t.Fatalf("NewServiceAccountSigner: %v", err)
	}
	if signer.Email() != "photos@pureclean.test" {
		t.Fatalf("email = %q", signer.Email())
	}

	payload := []byte("GET\n\n\n1700000000\n/bucket/sessions/s1/items/i1/p1.jpg")
	sig, err := signer.SignBytes(context.Background(), payload)
	if err != nil {
		t.Fatalf("SignBytes: %v", err)
	}
	digest := sha256.Sum256(payload)
	if err := rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], sig); err != nil {
		t.Fatalf("signature does not verify: %v", err)
	}
}

func TestServiceAccountSignerRejectsIncompleteKeys(t *testing.T) {
	if _, err := NewServiceAccountSigner([]byte(`{"client_email":"a@b.c"}`)); err == nil {
		t.Fatal("missing private_key should be rejected")
	}
	if _, err := NewServiceAccountSigner([]byte(`{"private_key":"x"}`)); err == nil {
		t.Fatal("missing client_email should be rejected")
	}
	if _, err := NewServiceAccountSigner([]byte(`not json`)); err == nil {
		t.Fatal("malformed json should be rejected")
	}
}
