package match

import (
	"context"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"github.com/zeebo/xxh3"

	"apiscope/detector/models"
)

const parseCacheSize = 128

// Core is the structural confirmer shared by all detector strategies for
// one engine instance. Parsed trees are cached per content hash; access
// is serialized because tree-sitter trees are not safe for concurrent
// use and eviction closes them.
type Core struct {
	mu        sync.Mutex
	languages map[string]*sitter.Language
	cache     *lru.Cache[uint64, *sitter.Tree]
}

// NewCore registers the built-in language grammars.
func NewCore() *Core {
	cache, _ := lru.NewWithEvict[uint64, *sitter.Tree](parseCacheSize, func(_ uint64, tree *sitter.Tree) {
		tree.Close()
	})
	return &Core{
		languages: map[string]*sitter.Language{
			"python":     python.GetLanguage(),
			"javascript": javascript.GetLanguage(),
			"typescript": typescript.GetLanguage(),
			"java":       java.GetLanguage(),
			"csharp":     csharp.GetLanguage(),
			"go":         golang.GetLanguage(),
		},
		cache: cache,
	}
}

// Close releases every cached parse tree.
func (c *Core) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}

// Supports reports whether a structural parser is registered for the
// language.
func (c *Core) Supports(language string) bool {
	_, ok := c.languages[language]
	return ok
}

// Confirm checks a textual candidate against the parse tree. A candidate
// is rejected when its offset falls inside a comment or string literal.
// Languages without a registered parser pass through with textual
// confidence, per the matching contract.
func (c *Core) Confirm(ctx context.Context, language string, content []byte, offset int) (models.Confidence, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lang, ok := c.languages[language]
	if !ok {
		return models.ConfidenceTextual, true
	}

	tree, err := c.parse(ctx, language, lang, content)
	if err != nil {
		return models.ConfidenceTextual, true
	}

	node := deepestNodeAt(tree.RootNode(), uint32(offset))
	for n := node; n != nil; n = n.Parent() {
		if isCommentNode(n.Type()) || isStringNode(n.Type()) {
			return "", false
		}
	}
	return models.ConfidenceStructural, true
}

// FunctionParams returns the parameter names of the handler function
// associated with a match site: the decorated function in Python, or the
// function argument of the enclosing registration call in JS/TS. Nil when
// no handler signature is visible.
func (c *Core) FunctionParams(ctx context.Context, language string, content []byte, offset int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	lang, ok := c.languages[language]
	if !ok {
		return nil
	}
	tree, err := c.parse(ctx, language, lang, content)
	if err != nil {
		return nil
	}

	node := deepestNodeAt(tree.RootNode(), uint32(offset))
	switch language {
	case "python":
		return pythonDecoratedParams(node, content)
	case "javascript", "typescript":
		return jsCallbackParams(node, content)
	}
	return nil
}

func (c *Core) parse(ctx context.Context, langID string, lang *sitter.Language, content []byte) (*sitter.Tree, error) {
	key := xxh3.Hash(content) ^ xxh3.HashString(langID)
	if tree, ok := c.cache.Get(key); ok {
		return tree, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, tree)
	return tree, nil
}

// deepestNodeAt walks down the tree to the smallest node covering the
// byte offset.
func deepestNodeAt(root *sitter.Node, offset uint32) *sitter.Node {
	node := root
	for {
		var next *sitter.Node
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child.StartByte() <= offset && offset < child.EndByte() {
				next = child
				break
			}
		}
		if next == nil {
			return node
		}
		node = next
	}
}

func isCommentNode(nodeType string) bool {
	return strings.Contains(nodeType, "comment")
}

func isStringNode(nodeType string) bool {
	switch nodeType {
	case "string", "string_literal", "interpreted_string_literal",
		"raw_string_literal", "template_string", "string_fragment",
		"char_literal", "verbatim_string_literal":
		return true
	}
	return false
}

// pythonDecoratedParams resolves a decorator match to the parameters of
// the function it decorates.
func pythonDecoratedParams(node *sitter.Node, content []byte) []string {
	decorated := node
	for decorated != nil && decorated.Type() != "decorated_definition" {
		decorated = decorated.Parent()
	}
	if decorated == nil {
		return nil
	}
	def := decorated.ChildByFieldName("definition")
	if def == nil || def.Type() != "function_definition" {
		return nil
	}
	params := def.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}

	var names []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		var name string
		switch p.Type() {
		case "identifier":
			name = p.Content(content)
		case "typed_parameter", "default_parameter", "typed_default_parameter":
			if id := firstIdentifier(p, content); id != "" {
				name = id
			}
		}
		if name == "" || name == "self" || name == "cls" {
			continue
		}
		names = append(names, name)
	}
	return names
}

// jsCallbackParams resolves a route-registration match to the parameters
// of the callback passed to the same call.
func jsCallbackParams(node *sitter.Node, content []byte) []string {
	call := node
	for call != nil && call.Type() != "call_expression" {
		call = call.Parent()
	}
	if call == nil {
		return nil
	}
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}

	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() != "arrow_function" && arg.Type() != "function_expression" && arg.Type() != "function" {
			continue
		}
		var names []string
		if params := arg.ChildByFieldName("parameters"); params != nil {
			for j := 0; j < int(params.NamedChildCount()); j++ {
				p := params.NamedChild(j)
				if p.Type() == "identifier" {
					names = append(names, p.Content(content))
				}
			}
		} else if p := arg.ChildByFieldName("parameter"); p != nil {
			names = append(names, p.Content(content))
		}
		return names
	}
	return nil
}

func firstIdentifier(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "identifier" {
			return child.Content(content)
		}
	}
	return ""
}
