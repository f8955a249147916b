// Package version 提供模块版本号的解析与比较
package version

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/bluele/gcache"
)

// 模块版本可能带有模块名前缀，例如 mod-inventory-storage-19.1.0
// 前缀必须以字母开头，避免把 21.0.0-1 这类预发布版本当成前缀截掉
var moduleVersionPattern = regexp.MustCompile(`^(?:[A-Za-z][\w-]*?-)?v?(\d+(?:\.\d+){0,2}(?:[-+].*)?)$`)

// Comparator 版本比较器
type Comparator interface {
	// IsNewerThan 判断 introducedAt 是否严格新于 moduleFrom
	IsNewerThan(moduleFrom, introducedAt string) (bool, error)
}

// Parser 带缓存的版本解析器
type Parser struct {
	cache gcache.Cache
}

// NewParser 创建解析器，size 为缓存条目上限
func NewParser(size int) *Parser {
	if size <= 0 {
		size = 256
	}
	return &Parser{cache: gcache.New(size).LRU().Build()}
}

var defaultParser = NewParser(256)

// Default 返回默认解析器
func Default() *Parser {
	return defaultParser
}

// Parse 解析版本号，接受 v 前缀和模块名前缀
func (p *Parser) Parse(raw string) (*semver.Version, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("version is empty")
	}
	if cached, err := p.cache.Get(raw); err == nil {
		return cached.(*semver.Version), nil
	}

	m := moduleVersionPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("invalid version %q", raw)
	}
	v, err := semver.NewVersion(m[1])
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	_ = p.cache.Set(raw, v)
	return v, nil
}

// IsNewerThan 判断 introducedAt 是否严格新于 moduleFrom
func (p *Parser) IsNewerThan(moduleFrom, introducedAt string) (bool, error) {
	from, err := p.Parse(moduleFrom)
	if err != nil {
		return false, err
	}
	introduced, err := p.Parse(introducedAt)
	if err != nil {
		return false, err
	}
	return introduced.GreaterThan(from), nil
}

// Compare 比较两个版本号
// 返回: -1 (v1 < v2), 0 (v1 == v2), 1 (v1 > v2)
func (p *Parser) Compare(v1, v2 string) (int, error) {
	ver1, err := p.Parse(v1)
	if err != nil {
		return 0, err
	}
	ver2, err := p.Parse(v2)
	if err != nil {
		return 0, err
	}
	return ver1.Compare(ver2), nil
}

// IsNewerThan 使用默认解析器比较
func IsNewerThan(moduleFrom, introducedAt string) (bool, error) {
	return defaultParser.IsNewerThan(moduleFrom, introducedAt)
}
