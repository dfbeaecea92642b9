// Package ssh 通过 SCP 上传证书文件，可选在远端执行部署后命令
package ssh

import (
	"bytes"
	"context"
	"net"
	"path"
	"strconv"
	"strings"
	"time"

	scp "github.com/bramvdbogaerde/go-scp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"certhub/internal/config"
	certerrors "certhub/internal/errors"
	"certhub/internal/logger"
	"certhub/internal/provider"
	"certhub/internal/servicekey"
)

const (
	defaultPort       = 22
	defaultUser       = "root"
	defaultDeployPath = "/opt/docker/nginx/"
	dialTimeout       = 30 * time.Second
)

// Target SSH部署目标
type Target struct {
	name              string
	addr              string
	user              string
	deployPath        string
	postDeployCommand string
	auth              []ssh.AuthMethod
	authKind          string
	hostKey           ssh.HostKeyCallback
	log               *logrus.Entry
}

// NewTarget 创建SSH部署目标
func NewTarget(key string, cfg config.TargetConfig, log *logrus.Entry) (*Target, error) {
	if _, err := servicekey.Expect(key, servicekey.KindTarget, servicekey.VendorSSH); err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		return nil, certerrors.Config("%s: 未配置 host", key)
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	user := cfg.User
	if user == "" {
		user = defaultUser
	}
	deployPath := cfg.DeployPath
	if deployPath == "" {
		deployPath = defaultDeployPath
	}

	auth, authKind, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}
	hostKey, verified, err := hostKeyCallback(cfg.KnownHostsFile)
	if err != nil {
		return nil, err
	}

	t := &Target{
		name:              key,
		addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		user:              user,
		deployPath:        deployPath,
		postDeployCommand: strings.TrimSpace(cfg.PostDeployCommand),
		auth:              auth,
		authKind:          authKind,
		hostKey:           hostKey,
		log:               log.WithField(logger.FieldTarget, key),
	}
	if !verified {
		t.log.Warn("未配置 known_hosts_file，不校验主机密钥")
	}
	t.log.WithField("auth", authKind).Info("部署目标已初始化")
	return t, nil
}

// Name 返回目标名称
func (t *Target) Name() string {
	return t.name
}

// Format SSH目标使用PEM分离格式
func (t *Target) Format() provider.Format {
	return provider.FormatSplit
}

// DeployCertificate 上传 <domain>.crt 与 <domain>.key，然后执行部署后命令
func (t *Target) DeployCertificate(ctx context.Context, domainName string, publicKey, privateKey []byte, _ string) error {
	client, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	certPath, keyPath := t.remotePaths(domainName)
	log := t.log.WithField(logger.FieldDomain, domainName)

	if err := t.upload(ctx, client, certPath, publicKey, "0644"); err != nil {
		return err
	}
	if err := t.upload(ctx, client, keyPath, privateKey, "0600"); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"cert": certPath, "key": keyPath}).Info("证书文件已上传")

	if t.postDeployCommand != "" {
		t.runPostDeploy(ctx, client, log)
	}
	return nil
}

func (t *Target) remotePaths(domainName string) (cert, key string) {
	return path.Join(t.deployPath, domainName+".crt"), path.Join(t.deployPath, domainName+".key")
}

// dial 建立新的SSH连接，受 ctx 控制
func (t *Target) dial(ctx context.Context) (*ssh.Client, error) {
	clientConfig := &ssh.ClientConfig{
		User:            t.user,
		Auth:            t.auth,
		HostKeyCallback: t.hostKey,
		Timeout:         dialTimeout,
	}

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, certerrors.Connection("连接 "+t.addr+" 失败", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, t.addr, clientConfig)
	if err != nil {
		conn.Close()
		return nil, certerrors.Connection("SSH握手失败 "+t.addr, err)
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

func (t *Target) upload(ctx context.Context, client *ssh.Client, remotePath string, data []byte, perm string) error {
	scpClient, err := scp.NewClientBySSH(client)
	if err != nil {
		return certerrors.Deploy("创建SCP会话失败", err)
	}
	defer scpClient.Close()

	if err := scpClient.CopyFile(ctx, bytes.NewReader(data), remotePath, perm); err != nil {
		return certerrors.Deploy("上传 "+remotePath+" 失败", err)
	}
	return nil
}

// runPostDeploy 在新会话中执行部署后命令；命令失败只记录日志，ctx 取消时关闭会话
func (t *Target) runPostDeploy(ctx context.Context, client *ssh.Client, log *logrus.Entry) {
	session, err := client.NewSession()
	if err != nil {
		log.WithError(err).Error("创建SSH会话失败，跳过部署后命令")
		return
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	log = log.WithField("command", t.postDeployCommand)
	done := make(chan error, 1)
	go func() { done <- session.Run(t.postDeployCommand) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		session.Close()
		<-done
		log.WithError(ctx.Err()).Warn("部署后命令已取消")
		return
	}

	fields := logrus.Fields{
		"stdout": strings.TrimSpace(stdout.String()),
		"stderr": strings.TrimSpace(stderr.String()),
	}

	var exitErr *ssh.ExitError
	switch {
	case err == nil:
		log.WithFields(fields).WithField("exit_status", 0).Info("部署后命令执行完成")
	case certerrors.As(err, &exitErr):
		log.WithFields(fields).WithField("exit_status", exitErr.ExitStatus()).Warn("部署后命令返回非零状态")
	default:
		log.WithFields(fields).WithError(err).Error("部署后命令执行失败")
	}
}
