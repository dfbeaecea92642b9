package ssh

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"certhub/internal/config"
	certerrors "certhub/internal/errors"
)

// 认证方式
const (
	authPublicKey = "publickey"
	authPassword  = "password"
	authNone      = "none"
)

// authMethods 按 私钥文件 → 密码 → 无认证 的顺序选择认证方式
func authMethods(cfg config.TargetConfig) ([]ssh.AuthMethod, string, error) {
	if len(cfg.IdentityFiles) > 0 {
		signers := make([]ssh.Signer, 0, len(cfg.IdentityFiles))
		for _, f := range cfg.IdentityFiles {
			signer, err := loadSigner(f, cfg.Password)
			if err != nil {
				return nil, "", err
			}
			signers = append(signers, signer)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signers...)}, authPublicKey, nil
	}

	if cfg.Password != "" {
		return []ssh.AuthMethod{ssh.Password(cfg.Password)}, authPassword, nil
	}

	return nil, authNone, nil
}

// loadSigner 读取私钥文件，加密私钥使用 passphrase 解密
func loadSigner(path, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return nil, certerrors.Config("读取私钥文件 %s 失败: %v", path, err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		return signer, nil
	}

	var missing *ssh.PassphraseMissingError
	if certerrors.As(err, &missing) && passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
		if err == nil {
			return signer, nil
		}
	}
	return nil, certerrors.Config("解析私钥文件 %s 失败: %v", path, err)
}

// hostKeyCallback 配置了 known_hosts 时校验主机密钥，否则接受任意主机密钥
func hostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, bool, error) {
	if knownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), false, nil
	}
	cb, err := knownhosts.New(expandHome(knownHostsFile))
	if err != nil {
		return nil, false, certerrors.Config("读取 known_hosts 失败: %v", err)
	}
	return cb, true, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
