package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCertHubError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *CertHubError
		expected string
	}{
		{
			name:     "message only",
			err:      &CertHubError{Code: ErrCodeConfig, Message: "缺少 host"},
			expected: "缺少 host",
		},
		{
			name:     "code fallback",
			err:      &CertHubError{Code: ErrCodeDeploy},
			expected: "DEPLOY",
		},
		{
			name:     "with domain",
			err:      &CertHubError{Code: ErrCodeFormat, Message: "缺少条目", Domain: "example.com"},
			expected: "example.com: 缺少条目",
		},
		{
			name:     "with underlying",
			err:      &CertHubError{Code: ErrCodeProvider, Message: "申请失败", Err: fmt.Errorf("quota")},
			expected: "申请失败: quota",
		},
		{
			name:     "with domain and underlying",
			err:      &CertHubError{Code: ErrCodeConnection, Message: "连接失败", Domain: "a.com", Err: fmt.Errorf("refused")},
			expected: "a.com: 连接失败: refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("部署 example.com: %w", Connection("ssh 握手失败", fmt.Errorf("auth")))

	assert.True(t, Is(err, ErrConnection))
	assert.False(t, Is(err, ErrDeploy))
	assert.Equal(t, ErrCodeConnection, CodeOf(err))
}

func TestUnwrap(t *testing.T) {
	underlying := fmt.Errorf("eof")
	err := Deploy("上传失败", underlying)

	assert.ErrorIs(t, err, underlying)
}

func TestNotImplementedIsExplicit(t *testing.T) {
	err := NotImplemented("DNS 验证")

	assert.True(t, Is(err, ErrNotImplemented))
	assert.Equal(t, "DNS 验证", err.Error())
}

func TestWithDomain(t *testing.T) {
	t.Run("attaches domain keeping code", func(t *testing.T) {
		err := WithDomain("example.com", Format("缺少条目", nil))

		var he *CertHubError
		require.True(t, As(err, &he))
		assert.Equal(t, "example.com", he.Domain)
		assert.Equal(t, ErrCodeFormat, he.Code)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, WithDomain("example.com", nil))
	})

	t.Run("plain error untouched", func(t *testing.T) {
		plain := fmt.Errorf("boom")
		assert.Same(t, plain, WithDomain("example.com", plain))
	})
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(fmt.Errorf("plain")))
}
