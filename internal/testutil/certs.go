// Package testutil 提供测试用的证书与压缩包构造工具
package testutil

import (
	"archive/zip"
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Issued 测试证书材料
type Issued struct {
	Cert    *x509.Certificate
	Key     any
	CertPEM []byte
	KeyPEM  []byte
}

// SelfSignedRSA 生成自签名 RSA 证书
func SelfSignedRSA(tb testing.TB, domainName string) *Issued {
	tb.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(tb, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return selfSigned(tb, domainName, key, &key.PublicKey, keyPEM)
}

// SelfSignedECDSA 生成自签名 ECDSA 证书
func SelfSignedECDSA(tb testing.TB, domainName string) *Issued {
	tb.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(tb, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(tb, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	return selfSigned(tb, domainName, key, &key.PublicKey, keyPEM)
}

func selfSigned(tb testing.TB, domainName string, key, pub any, keyPEM []byte) *Issued {
	tb.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: domainName},
		DNSNames:     []string{domainName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(90 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, pub, key)
	require.NoError(tb, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(tb, err)

	return &Issued{
		Cert:    cert,
		Key:     key,
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:  keyPEM,
	}
}

// PFX 将证书封装为 PKCS#12
func (i *Issued) PFX(tb testing.TB, password string) []byte {
	tb.Helper()
	data, err := pkcs12.Modern.Encode(i.Key, i.Cert, nil, password)
	require.NoError(tb, err)
	return data
}

// Zip 构造内存中的 zip 压缩包
func Zip(tb testing.TB, entries map[string][]byte) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range entries {
		f, err := w.Create(name)
		require.NoError(tb, err)
		_, err = f.Write(data)
		require.NoError(tb, err)
	}
	require.NoError(tb, w.Close())
	return buf.Bytes()
}

// TencentArchive 按腾讯云下载格式构造 base64 编码的压缩包
func TencentArchive(tb testing.TB, domainName string, issued *Issued, password string) string {
	tb.Helper()
	data := Zip(tb, map[string][]byte{
		"Nginx/1_" + domainName + "_bundle.crt": issued.CertPEM,
		"Nginx/2_" + domainName + ".key":        issued.KeyPEM,
		"IIS/" + domainName + ".pfx":            issued.PFX(tb, password),
		"IIS/keystorePass.txt":                  []byte(password),
	})
	return base64.StdEncoding.EncodeToString(data)
}
