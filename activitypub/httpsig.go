package activitypub

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"strings"

	"code.superseriousbusiness.org/httpsig"
)

// SignRequest signs an outgoing request with the draft-cavage headers
// federated servers expect.
func SignRequest(req *http.Request, privateKey *rsa.PrivateKey, keyId string) error {
	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.RSA_SHA256},
		httpsig.DigestSha256,
		[]string{"(request-target)", "host", "date", "digest"},
		httpsig.Signature,
		0,
	)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}
	return signer.SignRequest(privateKey, keyId, req, nil)
}

// VerifyRequest checks the signature of an inbound request against the
// claimed actor's public key and returns the actor URI the key belongs to.
func VerifyRequest(req *http.Request, publicKeyPem string) (string, error) {
	verifier, err := httpsig.NewVerifier(req)
	if err != nil {
		return "", fmt.Errorf("failed to create verifier: %w", err)
	}

	rsaPubKey, err := ParsePublicKey(publicKeyPem)
	if err != nil {
		return "", err
	}

	if err := verifier.Verify(rsaPubKey, httpsig.RSA_SHA256); err != nil {
		return "", fmt.Errorf("signature verification failed: %w", err)
	}

	// keyId is "https://example.com/users/alice#main-key"
	return strings.Split(verifier.KeyId(), "#")[0], nil
}

// SignerKeyId returns the keyId named by the request's Signature header
// before any verification, so the handler knows whose key to fetch.
func SignerKeyId(req *http.Request) (string, error) {
	verifier, err := httpsig.NewVerifier(req)
	if err != nil {
		return "", fmt.Errorf("failed to parse signature header: %w", err)
	}
	return verifier.KeyId(), nil
}

// ParsePrivateKey converts a PKCS1 PEM string to *rsa.PrivateKey.
func ParsePrivateKey(pemString string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemString))
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block")
	}
	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return privateKey, nil
}

// ParsePublicKey converts a PEM string to *rsa.PublicKey. Remote servers
// publish PKIX blocks; our own keys are PKCS1, so both are accepted.
func ParsePublicKey(pemString string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemString))
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block")
	}

	if pubKey, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaPubKey, ok := pubKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA public key")
		}
		return rsaPubKey, nil
	}

	rsaPubKey, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return rsaPubKey, nil
}
