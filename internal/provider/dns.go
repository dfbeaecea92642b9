package provider

import (
	"context"
	"strconv"
)

// DNSProvider DNS提供商接口，用于DNS验证记录
type DNSProvider interface {
	// Name 返回注册键
	Name() string

	// AddVerificationRecord 添加或更新TXT验证记录
	// 同名记录值不同时原地更新；值相同时返回原记录ID
	AddVerificationRecord(ctx context.Context, domain, recordName, recordValue string) (RecordID, error)

	// RemoveVerificationRecord 按句柄删除记录，句柄失效时返回 NotFound 错误
	RemoveVerificationRecord(ctx context.Context, domain string, id RecordID) error
}

// RecordIDKind 记录ID的表示类型
type RecordIDKind uint8

const (
	RecordIDString RecordIDKind = iota + 1
	RecordIDNumeric
)

// RecordID 不透明的DNS记录句柄
// 不同DNS后端的ID表示不同（字符串或数字），调用方只能原样传回
type RecordID struct {
	kind RecordIDKind
	str  string
	num  uint64
}

// StringRecordID 创建字符串类型的句柄
func StringRecordID(id string) RecordID {
	return RecordID{kind: RecordIDString, str: id}
}

// NumericRecordID 创建数字类型的句柄
func NumericRecordID(id uint64) RecordID {
	return RecordID{kind: RecordIDNumeric, num: id}
}

// Kind 返回句柄类型
func (r RecordID) Kind() RecordIDKind {
	return r.kind
}

// IsZero 是否为空句柄
func (r RecordID) IsZero() bool {
	return r.kind == 0
}

// StringValue 取出字符串ID
func (r RecordID) StringValue() (string, bool) {
	return r.str, r.kind == RecordIDString
}

// NumericValue 取出数字ID
func (r RecordID) NumericValue() (uint64, bool) {
	return r.num, r.kind == RecordIDNumeric
}

// String 用于日志输出
func (r RecordID) String() string {
	switch r.kind {
	case RecordIDString:
		return r.str
	case RecordIDNumeric:
		return strconv.FormatUint(r.num, 10)
	default:
		return "<none>"
	}
}
