package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/cairnhq/cairn/internal/parser"
)

// InventoryFile extracts elements from one parsed file in declaration
// order: top-level functions, methods (qualified Receiver.name), and
// named type declarations.
func InventoryFile(result *parser.ParseResult, relPath string) []Element {
	var elements []Element

	root := result.Tree.RootNode()
	src := result.Source

	for i := range int(root.ChildCount()) {
		node := root.Child(i)
		switch node.Type() {
		case "function_declaration":
			if el := elementFromFunction(node, src, relPath, ""); el != nil {
				elements = append(elements, *el)
			}
		case "method_declaration":
			recv := receiverTypeName(node, src)
			if el := elementFromFunction(node, src, relPath, recv); el != nil {
				elements = append(elements, *el)
			}
		case "type_declaration":
			for j := range int(node.ChildCount()) {
				spec := node.Child(j)
				if spec.Type() != "type_spec" {
					continue
				}
				if el := elementFromTypeSpec(node, spec, src, relPath); el != nil {
					elements = append(elements, *el)
				}
			}
		}
	}

	return elements
}

func elementFromFunction(node *sitter.Node, src []byte, relPath, receiver string) *Element {
	name := parser.GetNodeText(node.ChildByFieldName("name"), src)
	if name == "" {
		return nil
	}

	qualified := name
	kind := KindFunction
	if receiver != "" {
		qualified = receiver + "." + name
		kind = KindMethod
	}

	return &Element{
		Name:       qualified,
		Kind:       kind,
		FilePath:   relPath,
		LineNumber: int(node.StartPoint().Row) + 1,
		Doc:        docComment(node, src),
		IsPrivate:  isUnexported(name),
		IsHook:     isFrameworkHook(name, kind),
	}
}

func elementFromTypeSpec(decl, spec *sitter.Node, src []byte, relPath string) *Element {
	name := parser.GetNodeText(spec.ChildByFieldName("name"), src)
	if name == "" {
		return nil
	}

	// Doc comments attach to the type_declaration, not the spec, except
	// inside grouped type ( ... ) blocks.
	docNode := decl
	if decl.ChildCount() > 0 && decl.Child(0).Type() == "(" {
		docNode = spec
	}

	return &Element{
		Name:       name,
		Kind:       KindType,
		FilePath:   relPath,
		LineNumber: int(spec.StartPoint().Row) + 1,
		Doc:        docComment(docNode, src),
		IsPrivate:  isUnexported(name),
	}
}

// receiverTypeName extracts the method receiver's base type, stripping
// pointers and type parameters.
func receiverTypeName(node *sitter.Node, src []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for i := range int(recv.ChildCount()) {
		child := recv.Child(i)
		if child.Type() != "parameter_declaration" {
			continue
		}
		typeNode := child.ChildByFieldName("type")
		text := parser.GetNodeText(typeNode, src)
		text = strings.TrimPrefix(text, "*")
		if idx := strings.IndexByte(text, '['); idx > 0 {
			text = text[:idx]
		}
		return text
	}
	return ""
}

// docComment collects the contiguous comment block immediately above the
// declaration and strips comment markers.
func docComment(node *sitter.Node, src []byte) string {
	var lines []string
	expectRow := node.StartPoint().Row

	for prev := node.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
		if prev.Type() != "comment" {
			break
		}
		if expectRow == 0 || prev.EndPoint().Row != expectRow-1 {
			break
		}
		text := parser.GetNodeText(prev, src)
		text = strings.TrimPrefix(text, "//")
		text = strings.TrimPrefix(text, "/*")
		text = strings.TrimSuffix(text, "*/")
		lines = append(lines, strings.TrimSpace(text))
		expectRow = prev.StartPoint().Row
	}

	if len(lines) == 0 {
		return ""
	}
	// Collected bottom-up; restore source order.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}

func isUnexported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return r != utf8.RuneError && !unicode.IsUpper(r)
}

// Interface methods the Go runtime, stdlib, or ubiquitous interfaces call
// implicitly. Flagging these mirrors flagging dunder methods: never safe.
var hookMethods = map[string]bool{
	"String":          true,
	"GoString":        true,
	"Error":           true,
	"Format":          true,
	"MarshalJSON":     true,
	"UnmarshalJSON":   true,
	"MarshalText":     true,
	"UnmarshalText":   true,
	"MarshalBinary":   true,
	"UnmarshalBinary": true,
	"ServeHTTP":       true,
}

var hookPrefixes = []string{"Test", "Benchmark", "Example", "Fuzz"}

// isFrameworkHook reports names invoked by the runtime, the test harness,
// or a standard interface contract rather than by project code.
func isFrameworkHook(baseName string, kind Kind) bool {
	if kind == KindMethod {
		return hookMethods[baseName]
	}
	if baseName == "main" || baseName == "init" || baseName == "TestMain" {
		return true
	}
	for _, prefix := range hookPrefixes {
		if strings.HasPrefix(baseName, prefix) && len(baseName) > len(prefix) {
			return true
		}
	}
	return false
}
