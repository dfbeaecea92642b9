package tencent

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"io"
	"strings"

	certerrors "certhub/internal/errors"
)

// 腾讯云下载压缩包中的条目
func splitEntries(domain string) (cert, key string) {
	return "Nginx/1_" + domain + "_bundle.crt", "Nginx/2_" + domain + ".key"
}

func bundleEntries(domain string) (pfx, password string) {
	return "IIS/" + domain + ".pfx", "IIS/keystorePass.txt"
}

// openArchive 解码 base64 编码的 zip 内容
func openArchive(content string) (*zip.Reader, error) {
	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, certerrors.Format("证书压缩包 base64 解码失败", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, certerrors.Format("证书压缩包解析失败", err)
	}
	return zr, nil
}

// readEntry 读取压缩包中的指定条目，缺失时返回格式错误
func readEntry(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, certerrors.Format("证书压缩包缺少条目 "+name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, certerrors.Format("读取条目 "+name+" 失败", err)
	}
	return data, nil
}

func trimPassword(b []byte) string {
	return strings.TrimRight(string(b), "\r\n")
}
