package store

import (
	"fmt"
	"strconv"
	"strings"

	apierrors "github.com/kart-io/knowledge-x/pkg/utils/errors"

	"github.com/kart-io/knowledge-x/internal/model"
	"github.com/kart-io/knowledge-x/internal/pkg/kb/textutil"
)

// filterableFields 是允许出现在过滤表达式中的字段白名单，
// 与向量集合的标量列一一对应。
var filterableFields = map[string]struct{}{
	"department":        {},
	"role":              {},
	"organization_type": {},
	"uploaded_by":       {},
	"content_type":      {},
	"category":          {},
	"language":          {},
	"security_level":    {},
	"anonymized":        {},
	"source_file_id":    {},
	"chunk_index":       {},
	"content_hash":      {},
	"tags":              {},
}

// FilterExpr 是元数据过滤表达式树的节点。
type FilterExpr interface {
	// Matches 判断记录是否满足表达式，供内存实现使用。
	Matches(rec *model.DocumentRecord) bool

	// Render 渲染为 Milvus 布尔表达式。
	Render() (string, error)

	// Validate 校验字段名与取值。
	Validate() error
}

// Eq 等值匹配。
type Eq struct {
	Field string
	Value any
}

// In 多值匹配。
type In struct {
	Field  string
	Values []any
}

// Range 数值区间匹配，Min/Max 为 nil 表示该端无界。
type Range struct {
	Field string
	Min   *int64
	Max   *int64
}

// And 所有子表达式同时成立。
type And struct {
	Exprs []FilterExpr
}

// Or 任一子表达式成立。
type Or struct {
	Exprs []FilterExpr
}

// SecurityAtMost 安全级别不超过给定上限。展开为级别全序的前缀匹配。
type SecurityAtMost struct {
	Ceiling model.SecurityLevel
}

// fieldValue 从记录中取出可过滤字段的值。
func fieldValue(rec *model.DocumentRecord, field string) any {
	switch field {
	case "department":
		return rec.Organizational.Department
	case "role":
		return rec.Organizational.Role
	case "organization_type":
		return string(rec.Organizational.OrganizationType)
	case "uploaded_by":
		return rec.Organizational.UploadedBy
	case "content_type":
		return string(rec.Content.ContentType)
	case "category":
		return rec.Content.Category
	case "language":
		return rec.Content.Language
	case "security_level":
		return string(rec.Compliance.SecurityLevel)
	case "anonymized":
		return rec.Compliance.Anonymized
	case "source_file_id":
		return rec.Processing.SourceFileID
	case "chunk_index":
		return int64(rec.Processing.ChunkIndex)
	case "content_hash":
		return rec.Processing.ContentHash
	}
	return nil
}

// valuesEqual 比较记录字段值与过滤值，整数统一到 int64 再比较。
func valuesEqual(got, want any) bool {
	if gi, ok := toInt64(got); ok {
		if wi, ok := toInt64(want); ok {
			return gi == wi
		}
		return false
	}
	return got == want
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// renderValue 渲染过滤值为 Milvus 表达式字面量。
func renderValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case model.SecurityLevel:
		return strconv.Quote(string(x)), nil
	case model.ContentType:
		return strconv.Quote(string(x)), nil
	case model.OrganizationType:
		return strconv.Quote(string(x)), nil
	}
	return "", fmt.Errorf("unsupported filter value type %T", v)
}

func validateField(field string) error {
	if _, ok := filterableFields[field]; !ok {
		return apierrors.ErrKBInvalidFilter.WithMessagef("field %q is not filterable", field)
	}
	return nil
}

// --- Eq ---

func (e *Eq) Matches(rec *model.DocumentRecord) bool {
	// tags 是数组字段，等值匹配退化为成员判定
	if e.Field == "tags" {
		v, ok := e.Value.(string)
		return ok && textutil.ContainsString(rec.Content.Tags, v)
	}
	return valuesEqual(fieldValue(rec, e.Field), e.Value)
}

func (e *Eq) Render() (string, error) {
	v, err := renderValue(e.Value)
	if err != nil {
		return "", err
	}
	if e.Field == "tags" {
		return fmt.Sprintf("array_contains(tags, %s)", v), nil
	}
	return fmt.Sprintf("%s == %s", e.Field, v), nil
}

func (e *Eq) Validate() error {
	if err := validateField(e.Field); err != nil {
		return err
	}
	if e.Field == "tags" {
		if _, ok := e.Value.(string); !ok {
			return apierrors.ErrKBInvalidFilter.WithMessage("tags filter values must be strings")
		}
	}
	if _, err := renderValue(e.Value); err != nil {
		return apierrors.ErrKBInvalidFilter.WithCause(err)
	}
	return nil
}

// --- In ---

func (e *In) Matches(rec *model.DocumentRecord) bool {
	// tags 上的 In 表示任一标签命中
	if e.Field == "tags" {
		for _, v := range e.Values {
			if s, ok := v.(string); ok && textutil.ContainsString(rec.Content.Tags, s) {
				return true
			}
		}
		return false
	}
	got := fieldValue(rec, e.Field)
	for _, v := range e.Values {
		if valuesEqual(got, v) {
			return true
		}
	}
	return false
}

func (e *In) Render() (string, error) {
	if len(e.Values) == 0 {
		return "", apierrors.ErrKBInvalidFilter.WithMessage("in filter requires at least one value")
	}
	parts := make([]string, 0, len(e.Values))
	for _, v := range e.Values {
		rv, err := renderValue(v)
		if err != nil {
			return "", err
		}
		parts = append(parts, rv)
	}
	if e.Field == "tags" {
		return fmt.Sprintf("array_contains_any(tags, [%s])", strings.Join(parts, ", ")), nil
	}
	return fmt.Sprintf("%s in [%s]", e.Field, strings.Join(parts, ", ")), nil
}

func (e *In) Validate() error {
	if err := validateField(e.Field); err != nil {
		return err
	}
	if len(e.Values) == 0 {
		return apierrors.ErrKBInvalidFilter.WithMessage("in filter requires at least one value")
	}
	for _, v := range e.Values {
		if e.Field == "tags" {
			if _, ok := v.(string); !ok {
				return apierrors.ErrKBInvalidFilter.WithMessage("tags filter values must be strings")
			}
		}
		if _, err := renderValue(v); err != nil {
			return apierrors.ErrKBInvalidFilter.WithCause(err)
		}
	}
	return nil
}

// --- Range ---

func (e *Range) Matches(rec *model.DocumentRecord) bool {
	got, ok := toInt64(fieldValue(rec, e.Field))
	if !ok {
		return false
	}
	if e.Min != nil && got < *e.Min {
		return false
	}
	if e.Max != nil && got > *e.Max {
		return false
	}
	return true
}

func (e *Range) Render() (string, error) {
	var parts []string
	if e.Min != nil {
		parts = append(parts, fmt.Sprintf("%s >= %d", e.Field, *e.Min))
	}
	if e.Max != nil {
		parts = append(parts, fmt.Sprintf("%s <= %d", e.Field, *e.Max))
	}
	if len(parts) == 0 {
		return "", apierrors.ErrKBInvalidFilter.WithMessage("range filter requires a bound")
	}
	return strings.Join(parts, " and "), nil
}

func (e *Range) Validate() error {
	if err := validateField(e.Field); err != nil {
		return err
	}
	if e.Min == nil && e.Max == nil {
		return apierrors.ErrKBInvalidFilter.WithMessage("range filter requires a bound")
	}
	if e.Min != nil && e.Max != nil && *e.Min > *e.Max {
		return apierrors.ErrKBInvalidFilter.WithMessage("range filter min exceeds max")
	}
	return nil
}

// --- And ---

func (e *And) Matches(rec *model.DocumentRecord) bool {
	for _, sub := range e.Exprs {
		if !sub.Matches(rec) {
			return false
		}
	}
	return true
}

func (e *And) Render() (string, error) {
	return renderJoined(e.Exprs, "and")
}

func (e *And) Validate() error {
	return validateChildren(e.Exprs, "and")
}

// --- Or ---

func (e *Or) Matches(rec *model.DocumentRecord) bool {
	for _, sub := range e.Exprs {
		if sub.Matches(rec) {
			return true
		}
	}
	return false
}

func (e *Or) Render() (string, error) {
	return renderJoined(e.Exprs, "or")
}

func (e *Or) Validate() error {
	return validateChildren(e.Exprs, "or")
}

func renderJoined(exprs []FilterExpr, op string) (string, error) {
	if len(exprs) == 0 {
		return "", apierrors.ErrKBInvalidFilter.WithMessagef("%s filter requires at least one operand", op)
	}
	parts := make([]string, 0, len(exprs))
	for _, sub := range exprs {
		s, err := sub.Render()
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+s+")")
	}
	return strings.Join(parts, " "+op+" "), nil
}

func validateChildren(exprs []FilterExpr, op string) error {
	if len(exprs) == 0 {
		return apierrors.ErrKBInvalidFilter.WithMessagef("%s filter requires at least one operand", op)
	}
	for _, sub := range exprs {
		if err := sub.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// --- SecurityAtMost ---

func (e *SecurityAtMost) Matches(rec *model.DocumentRecord) bool {
	return rec.Compliance.SecurityLevel.AtMost(e.Ceiling)
}

func (e *SecurityAtMost) Render() (string, error) {
	levels := model.LevelsAtMost(e.Ceiling)
	if len(levels) == 0 {
		return "", apierrors.ErrKBInvalidFilter.WithMessagef("unknown security level %q", e.Ceiling)
	}
	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = strconv.Quote(string(l))
	}
	return fmt.Sprintf("security_level in [%s]", strings.Join(parts, ", ")), nil
}

func (e *SecurityAtMost) Validate() error {
	if !e.Ceiling.Valid() {
		return apierrors.ErrKBInvalidFilter.WithMessagef("unknown security level %q", e.Ceiling)
	}
	return nil
}
