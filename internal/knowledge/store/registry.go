package store

import (
	"fmt"

	"github.com/kart-io/knowledge-x/internal/model"
)

// AgenticDescription 面向路由决策的集合描述，供分类器（规则或 LLM）
// 判断查询应落到哪个集合。
type AgenticDescription struct {
	// Purpose 集合承载的内容。
	Purpose string `json:"purpose"`
	// BestFor 适合回答的问题类型。
	BestFor string `json:"best_for"`
	// TypicalQueries 示例查询。
	TypicalQueries []string `json:"typical_queries,omitempty"`
	// AuthorityLevel 内容权威级别（primary/secondary）。
	AuthorityLevel string `json:"authority_level,omitempty"`
}

// CollectionDescriptor 描述一个向量集合及其承载的内容形态。
type CollectionDescriptor struct {
	// Name 集合名称。
	Name string `json:"name"`
	// Description 集合用途说明。
	Description string `json:"description"`
	// Dimension 向量维度。
	Dimension int `json:"dimension"`
	// Enabled 是否参与摄入与检索。
	Enabled bool `json:"enabled"`
	// ContentTypes 该集合承载的内容形态。
	ContentTypes []model.ContentType `json:"content_types"`
	// Agentic 路由决策描述。
	Agentic AgenticDescription `json:"agentic"`
}

// Registry 是集合描述符的只读注册表。构造之后不可变更，
// 所有查找方法可以被并发调用。
type Registry struct {
	order  []string
	byName map[string]*CollectionDescriptor
	byType map[model.ContentType]*CollectionDescriptor
}

// NewRegistry 构造集合注册表。集合名或内容形态重复时返回错误。
func NewRegistry(descs []*CollectionDescriptor) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]*CollectionDescriptor, len(descs)),
		byType: make(map[model.ContentType]*CollectionDescriptor),
	}
	for _, d := range descs {
		if d.Name == "" {
			return nil, fmt.Errorf("collection name is required")
		}
		if d.Dimension <= 0 {
			return nil, fmt.Errorf("dimension must be positive for collection %s", d.Name)
		}
		if len(d.ContentTypes) == 0 {
			return nil, fmt.Errorf("collection %s must declare at least one content type", d.Name)
		}
		if _, ok := r.byName[d.Name]; ok {
			return nil, fmt.Errorf("duplicate collection name %q", d.Name)
		}
		cp := *d
		cp.ContentTypes = append([]model.ContentType(nil), d.ContentTypes...)
		for _, ct := range cp.ContentTypes {
			if !ct.Valid() {
				return nil, fmt.Errorf("invalid content type %q for collection %s", ct, d.Name)
			}
			if _, ok := r.byType[ct]; ok {
				return nil, fmt.Errorf("content type %q claimed by more than one collection", ct)
			}
			r.byType[ct] = &cp
		}
		r.byName[d.Name] = &cp
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// DefaultRegistry 返回按内容形态划分的默认集合注册表。
// 图像集合默认关闭，音视频共用文本向量维度。
func DefaultRegistry(dimension int) *Registry {
	descs := []*CollectionDescriptor{
		{
			Name:         "kb_documents",
			Description:  "文本与结构化数据分块",
			Dimension:    dimension,
			Enabled:      true,
			ContentTypes: []model.ContentType{model.ContentDocument, model.ContentStructured},
			Agentic: AgenticDescription{
				Purpose: "Text documents and structured exports: policies, manuals, reports, spreadsheets.",
				BestFor: "Questions answered by reading prose or tabulated records.",
				TypicalQueries: []string{
					"What is the discharge protocol for cardiology?",
					"Summarize the Q3 budget report.",
				},
				AuthorityLevel: "primary",
			},
		},
		{
			Name:         "kb_images",
			Description:  "图像内容描述分块",
			Dimension:    dimension,
			Enabled:      false,
			ContentTypes: []model.ContentType{model.ContentImage},
			Agentic: AgenticDescription{
				Purpose: "Image content: diagrams, scans, photos and their extracted captions.",
				BestFor: "Questions about visual material.",
				TypicalQueries: []string{
					"Show the network topology diagram.",
				},
				AuthorityLevel: "secondary",
			},
		},
		{
			Name:         "kb_audio",
			Description:  "音频转写分块",
			Dimension:    dimension,
			Enabled:      true,
			ContentTypes: []model.ContentType{model.ContentAudio},
			Agentic: AgenticDescription{
				Purpose: "Audio transcripts: recorded meetings, lectures and calls.",
				BestFor: "Questions about spoken content.",
				TypicalQueries: []string{
					"What was decided in Monday's standup recording?",
				},
				AuthorityLevel: "secondary",
			},
		},
		{
			Name:         "kb_video",
			Description:  "视频转写分块",
			Dimension:    dimension,
			Enabled:      true,
			ContentTypes: []model.ContentType{model.ContentVideo},
			Agentic: AgenticDescription{
				Purpose: "Video transcripts: training sessions, lecture captures, walkthroughs.",
				BestFor: "Questions about recorded presentations.",
				TypicalQueries: []string{
					"Which steps does the onboarding video cover?",
				},
				AuthorityLevel: "secondary",
			},
		},
	}
	r, err := NewRegistry(descs)
	if err != nil {
		// 默认描述符是常量数据，构造失败属于编程错误
		panic(err)
	}
	return r
}

// Get 按名称查找集合描述符。
func (r *Registry) Get(name string) (*CollectionDescriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// ForContentType 按内容形态查找集合描述符。
func (r *Registry) ForContentType(ct model.ContentType) (*CollectionDescriptor, bool) {
	d, ok := r.byType[ct]
	return d, ok
}

// List 按注册顺序返回全部集合描述符。
func (r *Registry) List() []*CollectionDescriptor {
	out := make([]*CollectionDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Enabled 按注册顺序返回启用的集合描述符。
func (r *Registry) Enabled() []*CollectionDescriptor {
	var out []*CollectionDescriptor
	for _, name := range r.order {
		if d := r.byName[name]; d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// Names 按注册顺序返回全部集合名称。
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
