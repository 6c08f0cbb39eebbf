package service

import (
	"bytes"
	"context"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// 不可见元素：其下的文本不收集、不改动
var nonVisibleAtoms = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
}

// TranslateDocument 结构化文档翻译
// 按文档序收集可翻译文本叶子 -> 一次批量翻译 -> 原位回填 -> 重新序列化；
// 叶子与译文的对位关系由 TranslateList 的等长同序约定保证，树结构不变
func (s *TranslatorService) TranslateDocument(ctx context.Context, doc, fromLang, toLang string) (string, error) {
	if strings.TrimSpace(doc) == "" {
		return doc, nil
	}

	bodyNode := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(doc), bodyNode)
	if err != nil {
		return "", err
	}

	var leaves []*html.Node
	for _, n := range nodes {
		collectTextLeaves(n, &leaves)
	}
	if len(leaves) == 0 {
		return doc, nil
	}

	texts := make([]string, len(leaves))
	for i, leaf := range leaves {
		texts[i] = leaf.Data
	}

	translated, err := s.TranslateList(ctx, texts, fromLang, toLang)
	if err != nil {
		return "", err
	}

	for i, leaf := range leaves {
		leaf.Data = translated[i]
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return strings.ReplaceAll(buf.String(), "\n", ""), nil
}

// collectTextLeaves 收集可翻译文本叶子（文档序）
// 跳过空白文本与 script/style 直接父级下的内容
func collectTextLeaves(n *html.Node, out *[]*html.Node) {
	if n.Type == html.TextNode {
		if strings.TrimSpace(n.Data) == "" {
			return
		}
		if p := n.Parent; p != nil && p.Type == html.ElementNode && nonVisibleAtoms[p.DataAtom] {
			return
		}
		*out = append(*out, n)
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectTextLeaves(c, out)
	}
}
