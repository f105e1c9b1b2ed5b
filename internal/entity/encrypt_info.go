package entity

import "bytes"

// EncryptInfo 加密信息（EXT-X-KEY），密钥本身由 KeyCache 按 URI 保存
type EncryptInfo struct {
	Method     EncryptMethod `json:"Method"`
	URI        string        `json:"URI,omitempty"`
	RawURI     string        `json:"RawURI,omitempty"`
	IV         []byte        `json:"IV,omitempty"`
	KeyFormat  string        `json:"KeyFormat,omitempty"`
	KeyFormatV string        `json:"KeyFormatVersions,omitempty"`
}

// NewEncryptInfo 创建新的加密信息
func NewEncryptInfo() *EncryptInfo {
	return &EncryptInfo{
		Method: EncryptMethodNone,
	}
}

// IsEncrypted 判断是否加密
func (e *EncryptInfo) IsEncrypted() bool {
	return e != nil && e.Method != EncryptMethodNone
}

// Equal 比较两条EXT-X-KEY声明
func (e *EncryptInfo) Equal(other *EncryptInfo) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.Method == other.Method &&
		e.URI == other.URI &&
		e.RawURI == other.RawURI &&
		bytes.Equal(e.IV, other.IV) &&
		e.KeyFormat == other.KeyFormat &&
		e.KeyFormatV == other.KeyFormatV
}
