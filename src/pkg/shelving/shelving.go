// Package shelving 计算物品的排架号，并提供为存量物品补齐排架号的迁移
package shelving

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/bililive-go/rowmigrate/src/pkg/migration"
	"github.com/bililive-go/rowmigrate/src/pkg/store"
	"github.com/buger/jsonparser"
	"github.com/tidwall/gjson"
)

const (
	// MigrationName 迁移名称
	MigrationName = "item_shelving_order"
	// IntroducedIn 引入排架号的模块版本
	IntroducedIn = "20.2.0"

	// orderField 排架号在物品内容中的字段名
	orderField = "effectiveShelvingOrder"
	// numberWidth 整数部分补零后的宽度
	numberWidth = 10
)

var spaces = regexp.MustCompile(`\s+`)

// Components 参与排架号计算的字段
type Components struct {
	CallNumber  string
	Prefix      string
	Suffix      string
	Volume      string
	Enumeration string
	Chronology  string
	CopyNumber  string
}

// ComponentsOf 从物品内容中读取索书号相关字段
func ComponentsOf(content []byte) Components {
	r := gjson.GetManyBytes(content,
		"effectiveCallNumberComponents.callNumber",
		"effectiveCallNumberComponents.prefix",
		"effectiveCallNumberComponents.suffix",
		"volume",
		"enumeration",
		"chronology",
		"copyNumber",
	)
	return Components{
		CallNumber:  r[0].String(),
		Prefix:      r[1].String(),
		Suffix:      r[2].String(),
		Volume:      r[3].String(),
		Enumeration: r[4].String(),
		Chronology:  r[5].String(),
		CopyNumber:  r[6].String(),
	}
}

// Order 计算排架号，没有索书号时为空字符串
//
// 前缀不参与排序。整数部分补零到固定宽度，使 "QA 9" 排在 "QA 10" 之前；小数部分保持原样。
func Order(c Components) string {
	if strings.TrimSpace(c.CallNumber) == "" {
		return ""
	}

	var parts []string
	for _, part := range []string{c.CallNumber, c.Volume, c.Enumeration, c.Chronology, c.CopyNumber, c.Suffix} {
		if n := normalize(part); n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, " ")
}

func normalize(s string) string {
	s = spaces.ReplaceAllString(strings.ToUpper(strings.TrimSpace(s)), " ")

	var b strings.Builder
	for i := 0; i < len(s); {
		if !isDigit(s[i]) {
			b.WriteByte(s[i])
			i++
			continue
		}
		j := i
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		run := s[i:j]
		if i > 1 && s[i-1] == '.' && isDigit(s[i-2]) {
			// 小数部分
			b.WriteString(run)
		} else {
			run = strings.TrimLeft(run, "0")
			if run == "" {
				run = "0"
			}
			if len(run) < numberWidth {
				b.WriteString(strings.Repeat("0", numberWidth-len(run)))
			}
			b.WriteString(run)
		}
		i = j
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Apply 计算排架号并写回物品内容与排架号列
func Apply(item store.Item) (store.Item, error) {
	if !gjson.ValidBytes(item.Content) {
		return item, fmt.Errorf("item %s: content is not valid JSON", item.ID)
	}

	order := Order(ComponentsOf(item.Content))
	value, err := json.Marshal(order)
	if err != nil {
		return item, err
	}
	content, err := jsonparser.Set(slices.Clone(item.Content), value, orderField)
	if err != nil {
		return item, fmt.Errorf("item %s: failed to set shelving order: %w", item.ID, err)
	}

	item.Content = content
	item.EffectiveShelvingOrder = sql.NullString{String: order, Valid: true}
	return item, nil
}

// ApplyAll 对一批物品计算排架号，任一失败则整批失败
func ApplyAll(items []store.Item) ([]store.Item, error) {
	out := make([]store.Item, len(items))
	for i, item := range items {
		updated, err := Apply(item)
		if err != nil {
			return nil, err
		}
		out[i] = updated
	}
	return out, nil
}

// Definition 补齐存量物品排架号的迁移
func Definition() migration.Definition[store.Item] {
	return migration.Definition[store.Item]{
		Name:         MigrationName,
		IntroducedIn: IntroducedIn,
		Open: func(ctx context.Context, tx migration.Tx) (migration.Stream[store.Item], error) {
			cursor, err := store.StreamMissingShelvingOrder(ctx, tx)
			if err != nil {
				return nil, err
			}
			return cursor, nil
		},
		Update: func(ctx context.Context, tx migration.Tx, batch []store.Item) (int, error) {
			items, err := ApplyAll(batch)
			if err != nil {
				return 0, err
			}
			return store.UpdateBatch(ctx, tx, items)
		},
	}
}

// NewMigration 创建排架号迁移的运行器
func NewMigration(db migration.Beginner, opts ...migration.Option) (*migration.Runner[store.Item], error) {
	return migration.NewRunner(db, Definition(), opts...)
}
