package migration

import (
	"fmt"
	"strings"

	"github.com/bililive-go/rowmigrate/src/pkg/version"
	"github.com/sirupsen/logrus"
)

// Gate 根据升级前的模块版本判断迁移是否需要执行
type Gate struct {
	introducedIn string
	cmp          version.Comparator
}

// NewGate 创建版本闸门，cmp 为 nil 时使用默认比较器
func NewGate(introducedIn string, cmp version.Comparator) (*Gate, error) {
	if cmp == nil {
		cmp = version.Default()
	}
	// 校验引入版本本身合法
	if _, err := cmp.IsNewerThan(introducedIn, introducedIn); err != nil {
		return nil, fmt.Errorf("invalid introduced-in version: %w", err)
	}
	return &Gate{introducedIn: introducedIn, cmp: cmp}, nil
}

// IntroducedIn 返回引入版本
func (g *Gate) IntroducedIn() string {
	return g.introducedIn
}

// Check 空值表示全新安装，不需要迁移；否则仅当 from 严格早于引入版本时需要
func (g *Gate) Check(from string) (bool, error) {
	if strings.TrimSpace(from) == "" {
		return false, nil
	}
	return g.cmp.IsNewerThan(from, g.introducedIn)
}

// ShouldRun 同 Check，无法解析的版本视为不需要迁移
func (g *Gate) ShouldRun(from string) bool {
	run, err := g.Check(from)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"module_from":   from,
			"introduced_in": g.introducedIn,
		}).Warn("cannot compare module versions, skipping migration")
		return false
	}
	return run
}
