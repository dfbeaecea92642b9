package provider

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"

	pkcs12 "software.sslmate.com/src/go-pkcs12"

	certerrors "certhub/internal/errors"
)

// DecodeBundle 用密码解开 PKCS#12 证书包，返回叶子证书DER与私钥DER
// RSA 私钥为 PKCS#1，ECDSA 为 SEC1，其余为 PKCS#8
func DecodeBundle(b *BundleCertificate) (*SplitCertificate, error) {
	if b == nil || len(b.Bundle) == 0 {
		return nil, certerrors.Format("证书包为空", nil)
	}

	key, cert, caCerts, err := pkcs12.DecodeChain(b.Bundle, b.Password)
	if err != nil {
		return nil, certerrors.Format("解码证书包失败", err)
	}

	leaf := selectLeaf(key, append([]*x509.Certificate{cert}, caCerts...))
	if leaf == nil {
		return nil, certerrors.Format("证书包中没有与私钥匹配的证书", nil)
	}

	keyDER, err := marshalPrivateKey(key)
	if err != nil {
		return nil, certerrors.Format("导出私钥失败", err)
	}

	return &SplitCertificate{PublicKey: leaf.Raw, PrivateKey: keyDER}, nil
}

// EncodeBundle 将PEM格式的证书链与私钥封装为 PKCS#12 证书包，密码随机生成
func EncodeBundle(split *SplitCertificate) (*BundleCertificate, error) {
	certs, err := ParseCertificateChain(split.PublicKey)
	if err != nil {
		return nil, err
	}
	key, err := ParsePrivateKey(split.PrivateKey)
	if err != nil {
		return nil, err
	}

	leaf := selectLeaf(key, certs)
	if leaf == nil {
		return nil, certerrors.Format("证书链中没有与私钥匹配的证书", nil)
	}
	var caCerts []*x509.Certificate
	for _, c := range certs {
		if c != leaf {
			caCerts = append(caCerts, c)
		}
	}

	password, err := randomPassword()
	if err != nil {
		return nil, err
	}

	data, err := pkcs12.Modern.Encode(key, leaf, caCerts, password)
	if err != nil {
		return nil, certerrors.Format("生成证书包失败", err)
	}

	return &BundleCertificate{Bundle: data, Password: password}, nil
}

// LeafDER 返回PEM证书链中第一张证书的DER
func LeafDER(pemChain []byte) ([]byte, error) {
	rest := pemChain
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, certerrors.Format("未找到PEM证书", nil)
		}
		if block.Type == "CERTIFICATE" {
			return block.Bytes, nil
		}
	}
}

// ParseCertificateChain 解析PEM证书链
func ParseCertificateChain(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, certerrors.Format("解析证书失败", err)
		}
		certs = append(certs, c)
	}
	if len(certs) == 0 {
		return nil, certerrors.Format("未找到PEM证书", nil)
	}
	return certs, nil
}

// ParsePrivateKey 解析PEM私钥（PKCS#1、SEC1 或 PKCS#8）
func ParsePrivateKey(data []byte) (crypto.PrivateKey, error) {
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, certerrors.Format("未找到PEM私钥", nil)
		}
		switch block.Type {
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, certerrors.Format("解析RSA私钥失败", err)
			}
			return key, nil
		case "EC PRIVATE KEY":
			key, err := x509.ParseECPrivateKey(block.Bytes)
			if err != nil {
				return nil, certerrors.Format("解析EC私钥失败", err)
			}
			return key, nil
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, certerrors.Format("解析PKCS#8私钥失败", err)
			}
			return key, nil
		}
	}
}

func marshalPrivateKey(key any) ([]byte, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return x509.MarshalPKCS1PrivateKey(k), nil
	case *ecdsa.PrivateKey:
		return x509.MarshalECPrivateKey(k)
	default:
		return x509.MarshalPKCS8PrivateKey(key)
	}
}

// selectLeaf 选出公钥与私钥匹配的证书
func selectLeaf(key any, certs []*x509.Certificate) *x509.Certificate {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil
	}
	pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return nil
	}
	for _, c := range certs {
		if c != nil && pub.Equal(c.PublicKey) {
			return c
		}
	}
	return nil
}

func randomPassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("生成证书包密码失败: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
