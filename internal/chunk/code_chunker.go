package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// minChunkLines is the Tier B heuristic's floor on window size before it
// will honor an early break at a definition boundary.
const minChunkLines = 10

// definitionPrefixes are language-agnostic markers of a new top-level
// definition. The heuristic chunker treats a line starting with one of
// these (after left-trim) as a natural chunk boundary.
var definitionPrefixes = []string{
	"fn ", "pub fn ", "async fn ", "pub async fn ",
	"impl ", "struct ", "enum ", "mod ", "type ", "trait ",
	"class ", "def ", "func ",
}

func hasDefinitionPrefix(trimmed string) bool {
	for _, p := range definitionPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// resolveMaxLines applies the DefaultMaxLines fallback for non-positive
// caller input.
func resolveMaxLines(maxLines int) int {
	if maxLines <= 0 {
		return DefaultMaxLines
	}
	return maxLines
}

// heuristicOverlap mirrors the original scanner's sliding-window
// overlap: a fixed 8 lines for any reasonably sized window, falling
// back to half the window for small windows where 8 would leave no
// forward progress.
func heuristicOverlap(maxLines int) int {
	if maxLines > 16 {
		return 8
	}
	return maxLines / 2
}

// heuristicWindows computes the [start, end) line windows (0-indexed,
// end-exclusive) the Tier B sliding-window algorithm would emit over
// lines. It early-breaks a window at the next line that looks like the
// start of a new definition (once the window has reached
// minChunkLines), otherwise forces a break once the window hits
// maxLines, in which case the next window backs up by overlap lines to
// preserve context across the split.
func heuristicWindows(lines []string, maxLines int) [][2]int {
	lineCount := len(lines)
	if lineCount == 0 {
		return nil
	}
	if lineCount <= maxLines {
		return [][2]int{{0, lineCount}}
	}

	overlap := heuristicOverlap(maxLines)

	var windows [][2]int
	startLine := 0
	for startLine < lineCount {
		endLine := startLine + minChunkLines
		if endLine > lineCount {
			endLine = lineCount
		}

		hitLimit := false
		for endLine < lineCount {
			if endLine-startLine >= maxLines {
				hitLimit = true
				break
			}
			if hasDefinitionPrefix(strings.TrimLeft(lines[endLine], " \t")) && endLine-startLine >= minChunkLines {
				break
			}
			endLine++
		}

		windows = append(windows, [2]int{startLine, endLine})

		if hitLimit {
			next := startLine + 1
			if backed := endLine - overlap; backed > next {
				next = backed
			}
			startLine = next
		} else {
			startLine = endLine
		}

		if endLine >= lineCount {
			break
		}
	}

	return windows
}

// CodeChunkerOptions configures the code chunker behavior
type CodeChunkerOptions struct {
	// FuseLeadingComments, when true, folds a symbol's immediately
	// preceding doc comment into its chunk content and extends the
	// chunk's StartLine to cover it. Off by default: most callers want
	// RawContent to be exactly the symbol body so line ranges stay
	// anchored to the symbol itself.
	FuseLeadingComments bool
}

// CodeChunker implements AST-aware code chunking using tree-sitter
type CodeChunker struct {
	parser    *Parser
	extractor *SymbolExtractor
	registry  *LanguageRegistry
	options   CodeChunkerOptions
}

// NewCodeChunker creates a new code chunker with default options
func NewCodeChunker() *CodeChunker {
	return NewCodeChunkerWithOptions(CodeChunkerOptions{})
}

// NewCodeChunkerWithOptions creates a new code chunker with custom options
func NewCodeChunkerWithOptions(opts CodeChunkerOptions) *CodeChunker {
	registry := DefaultRegistry()
	return &CodeChunker{
		parser:    NewParserWithRegistry(registry),
		extractor: NewSymbolExtractorWithRegistry(registry),
		registry:  registry,
		options:   opts,
	}
}

// Close releases chunker resources
func (c *CodeChunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// SupportedExtensions returns file extensions this chunker handles
func (c *CodeChunker) SupportedExtensions() []string {
	return c.registry.SupportedExtensions()
}

// LanguageForExtension returns the registered language name for ext
// (including its leading dot, e.g. ".go"), or "" if unsupported.
func (c *CodeChunker) LanguageForExtension(ext string) string {
	config, ok := c.registry.GetByExtension(ext)
	if !ok {
		return ""
	}
	return config.Name
}

// Chunk splits a file into semantic chunks. maxLines bounds the line
// extent of a single chunk (<= 0 uses DefaultMaxLines): a Tier A
// (tree-sitter) symbol whose span exceeds it is re-split with the Tier
// B heuristic, and any file in an unsupported or unparsable language
// falls through to Tier B over the whole file.
func (c *CodeChunker) Chunk(ctx context.Context, file *FileInput, maxLines int) ([]*Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}
	maxLines = resolveMaxLines(maxLines)

	// Check if language is supported
	_, supported := c.registry.GetByName(file.Language)
	if !supported {
		// Fall back to line-based chunking
		return c.chunkHeuristic(file, maxLines)
	}

	// Parse the file
	tree, err := c.parser.Parse(ctx, file.Content, file.Language)
	if err != nil {
		// Fall back to line-based chunking on parse error
		return c.chunkHeuristic(file, maxLines)
	}

	// Extract context (package declaration, imports)
	fileContext := c.extractFileContext(tree, file.Content, file.Language)

	// Enrich context with file path marker for better embedding quality
	fileContext = c.enrichContextWithFilePath(file.Path, file.Language, fileContext)

	// Find symbol nodes (functions, classes, methods, types)
	symbolNodes := c.findSymbolNodes(tree, file.Language)

	if len(symbolNodes) == 0 {
		return nil, nil
	}

	// Create chunks from symbol nodes
	chunks := make([]*Chunk, 0, len(symbolNodes))
	now := time.Now()

	for _, node := range symbolNodes {
		nodeChunks := c.createChunksFromNode(node, tree, file, fileContext, now, maxLines)
		chunks = append(chunks, nodeChunks...)
	}

	return chunks, nil
}

// symbolNodeInfo holds a symbol node with its extracted symbol info
type symbolNodeInfo struct {
	node   *Node
	symbol *Symbol
}

// findSymbolNodes finds all top-level symbol-defining nodes
func (c *CodeChunker) findSymbolNodes(tree *Tree, language string) []*symbolNodeInfo {
	// Return empty slice, not nil, for consistent API behavior (DEBT-012)
	config, ok := c.registry.GetByName(language)
	if !ok {
		return []*symbolNodeInfo{}
	}

	var symbolNodes []*symbolNodeInfo

	// Build set of symbol-defining node types
	symbolTypes := make(map[string]SymbolType)
	for _, t := range config.FunctionTypes {
		symbolTypes[t] = SymbolTypeFunction
	}
	for _, t := range config.MethodTypes {
		symbolTypes[t] = SymbolTypeMethod
	}
	for _, t := range config.ClassTypes {
		symbolTypes[t] = SymbolTypeClass
	}
	for _, t := range config.InterfaceTypes {
		symbolTypes[t] = SymbolTypeInterface
	}
	for _, t := range config.TypeDefTypes {
		symbolTypes[t] = SymbolTypeType
	}
	for _, t := range config.ConstantTypes {
		symbolTypes[t] = SymbolTypeConstant
	}
	for _, t := range config.VariableTypes {
		symbolTypes[t] = SymbolTypeVariable
	}

	// Walk tree to find symbol nodes
	tree.Root.Walk(func(n *Node) bool {
		// For JS/TS lexical_declaration/variable_declaration, check for arrow functions first
		// Arrow functions should be typed as Function, not Constant
		if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
			sym := c.extractor.extractSpecialSymbol(n, tree.Source, language)
			if sym != nil {
				// It's an arrow function or function expression
				symbolNodes = append(symbolNodes, &symbolNodeInfo{
					node:   n,
					symbol: sym,
				})
				return true // Already handled, don't process as constant
			}
			// Not an arrow function - fall through to check as constant/variable
		}

		// Check if this is a symbol-defining node type
		if symType, isSymbol := symbolTypes[n.Type]; isSymbol {
			sym := c.extractSymbol(n, tree, symType, language)
			if sym != nil {
				symbolNodes = append(symbolNodes, &symbolNodeInfo{
					node:   n,
					symbol: sym,
				})
			}
		}
		return true
	})

	return symbolNodes
}

// extractSymbol extracts symbol info from a node
func (c *CodeChunker) extractSymbol(n *Node, tree *Tree, symType SymbolType, language string) *Symbol {
	config, _ := c.registry.GetByName(language)
	name := c.extractor.extractName(n, tree.Source, config, language)
	if name == "" {
		return nil
	}

	docComment := c.extractDocComment(n, tree.Source, language)

	return &Symbol{
		Name:       name,
		Type:       symType,
		StartLine:  int(n.StartPoint.Row) + 1,
		EndLine:    int(n.EndPoint.Row) + 1,
		DocComment: docComment,
	}
}

// extractDocComment extracts doc comment for a node, looking for multi-line comments
func (c *CodeChunker) extractDocComment(n *Node, source []byte, language string) string {
	// Find the start of the current line
	lineStart := int(n.StartByte)
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}

	// Look for comment on preceding lines
	if lineStart <= 1 {
		return ""
	}

	// Collect comment lines working backwards; at most one blank line
	// may separate the block from the node.
	var commentLines []string
	blankLines := 0
	pos := lineStart - 1 // Start before the newline

	for pos > 0 {
		// Find start of previous line
		prevLineEnd := pos
		pos--
		for pos > 0 && source[pos] != '\n' {
			pos--
		}
		prevLineStart := pos
		if pos > 0 {
			prevLineStart++ // Skip the newline
		}

		prevLine := strings.TrimSpace(string(source[prevLineStart:prevLineEnd]))

		// Check for single-line comments
		switch language {
		case "go", "typescript", "tsx", "javascript", "jsx":
			if strings.HasPrefix(prevLine, "//") {
				commentLines = append([]string{strings.TrimPrefix(prevLine, "//")}, commentLines...)
				continue
			}
		case "python":
			if strings.HasPrefix(prevLine, "#") {
				commentLines = append([]string{strings.TrimPrefix(prevLine, "#")}, commentLines...)
				continue
			}
		}

		// Stop if we hit a non-comment line or a second blank line
		if prevLine != "" {
			break
		}
		blankLines++
		if blankLines > 1 {
			break
		}
	}

	if len(commentLines) == 0 {
		return ""
	}

	return strings.TrimSpace(strings.Join(commentLines, "\n"))
}

// createChunksFromNode creates one or more chunks from a symbol node
func (c *CodeChunker) createChunksFromNode(info *symbolNodeInfo, tree *Tree, file *FileInput, fileContext string, now time.Time, maxLines int) []*Chunk {
	node := info.node
	rawContent := string(tree.Source[node.StartByte:node.EndByte])
	startLine := int(node.StartPoint.Row) + 1

	// Optionally fuse the leading doc comment into raw content, shifting
	// the chunk's StartLine back to cover it.
	if c.options.FuseLeadingComments && info.symbol.DocComment != "" {
		fused, linesPrepended := c.getRawContentWithDocComment(node, tree.Source, info.symbol.DocComment)
		rawContent = fused
		startLine -= linesPrepended
	}

	lineCount := info.symbol.EndLine - startLine + 1

	if lineCount <= maxLines {
		// Small enough to be a single chunk
		chunk := c.createChunk(file, rawContent, fileContext, info.symbol, now, startLine)
		return []*Chunk{chunk}
	}

	// Need to split large symbol
	return c.splitLargeSymbol(info, tree, file, fileContext, now, maxLines)
}

// getRawContentWithDocComment gets raw content including doc comment,
// returning the content and the number of lines prepended ahead of the
// symbol's own StartLine.
func (c *CodeChunker) getRawContentWithDocComment(n *Node, source []byte, docComment string) (string, int) {
	// Find start of doc comment (before the node)
	lineStart := int(n.StartByte)
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}

	// Count back through comment lines; a blank line between the comment
	// and the node is included but not counted as a comment line
	docLines := strings.Count(docComment, "\n") + 1
	linesPrepended := 0
	for i := 0; i < docLines && lineStart > 0; {
		lineEnd := lineStart - 1
		lineStart--
		for lineStart > 0 && source[lineStart-1] != '\n' {
			lineStart--
		}
		linesPrepended++
		if strings.TrimSpace(string(source[lineStart:lineEnd])) != "" {
			i++
		}
	}

	return string(source[lineStart:n.EndByte]), linesPrepended
}

// splitLargeSymbol splits a large symbol into multiple chunks using the
// Tier B heuristic over just the symbol's own span, then rebases the
// resulting sub-chunks' line numbers onto the whole file.
func (c *CodeChunker) splitLargeSymbol(info *symbolNodeInfo, tree *Tree, file *FileInput, fileContext string, now time.Time, maxLines int) []*Chunk {
	node := info.node
	content := string(tree.Source[node.StartByte:node.EndByte])

	return c.splitSpanByHeuristic(content, info.symbol, file, fileContext, now, int(node.StartPoint.Row)+1, maxLines)
}

// splitSpanByHeuristic runs the Tier B sliding-window algorithm over a
// single oversized symbol's own content and rebases each resulting
// window onto the whole file's line numbering (startLine is the span's
// own 1-indexed start line in the file).
func (c *CodeChunker) splitSpanByHeuristic(content string, symbol *Symbol, file *FileInput, fileContext string, now time.Time, startLine int, maxLines int) []*Chunk {
	lines := strings.Split(content, "\n")
	// Return empty slice, not nil, for consistent API behavior (DEBT-012)
	if len(lines) == 0 {
		return []*Chunk{}
	}

	windows := heuristicWindows(lines, maxLines)

	var chunks []*Chunk
	for _, w := range windows {
		chunkContent := strings.Join(lines[w[0]:w[1]], "\n")
		chunkStartLine := startLine + w[0]
		chunkEndLine := startLine + w[1] - 1

		// Create a sub-symbol for this chunk
		subSymbol := &Symbol{
			Name:      fmt.Sprintf("%s_part%d", symbol.Name, len(chunks)+1),
			Type:      symbol.Type,
			StartLine: chunkStartLine,
			EndLine:   chunkEndLine,
		}

		// For the first chunk, also register the parent symbol.
		// This ensures queries for "Search method" can find split symbols
		// that are stored as "Search_part1", "Search_part2", etc.
		// (See RCA-013: Split Symbol Discovery)
		symbols := []*Symbol{subSymbol}
		if len(chunks) == 0 {
			// Add parent symbol to first chunk for discoverability
			parentSymbol := &Symbol{
				Name:      symbol.Name,
				Type:      symbol.Type,
				StartLine: symbol.StartLine,
				EndLine:   symbol.EndLine,
			}
			symbols = append(symbols, parentSymbol)
		}

		chunk := &Chunk{
			ID:          generateChunkID(file.Path, chunkContent),
			FilePath:    file.Path,
			Content:     combineContextAndContent(fileContext, chunkContent),
			RawContent:  chunkContent,
			Context:     fileContext,
			ContentType: ContentTypeCode,
			Language:    file.Language,
			StartLine:   chunkStartLine,
			EndLine:     chunkEndLine,
			Symbols:     symbols,
			Metadata:    make(map[string]string),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		chunks = append(chunks, chunk)
	}

	return chunks
}

// createChunk creates a single chunk from content. startLine may
// precede symbol.StartLine when a leading doc comment was fused in.
func (c *CodeChunker) createChunk(file *FileInput, rawContent, fileContext string, symbol *Symbol, now time.Time, startLine int) *Chunk {
	return &Chunk{
		ID:          generateChunkID(file.Path, rawContent),
		FilePath:    file.Path,
		Content:     combineContextAndContent(fileContext, rawContent),
		RawContent:  rawContent,
		Context:     fileContext,
		ContentType: ContentTypeCode,
		Language:    file.Language,
		StartLine:   startLine,
		EndLine:     symbol.EndLine,
		Symbols:     []*Symbol{symbol},
		Metadata:    make(map[string]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// extractFileContext extracts package declaration and imports from a file
func (c *CodeChunker) extractFileContext(tree *Tree, source []byte, language string) string {
	var parts []string

	switch language {
	case "go":
		parts = c.extractGoContext(tree, source)
	case "typescript", "tsx":
		parts = c.extractTSContext(tree, source)
	case "javascript", "jsx":
		parts = c.extractJSContext(tree, source)
	case "python":
		parts = c.extractPythonContext(tree, source)
	}

	return strings.Join(parts, "\n\n")
}

func (c *CodeChunker) extractGoContext(tree *Tree, source []byte) []string {
	var parts []string

	// Find package clause
	for _, node := range tree.Root.Children {
		if node.Type == "package_clause" {
			parts = append(parts, node.GetContent(source))
			break
		}
	}

	// Find import declarations
	for _, node := range tree.Root.Children {
		if node.Type == "import_declaration" {
			parts = append(parts, node.GetContent(source))
		}
	}

	return parts
}

func (c *CodeChunker) extractTSContext(tree *Tree, source []byte) []string {
	return c.extractJSContext(tree, source) // Same for TS/TSX
}

func (c *CodeChunker) extractJSContext(tree *Tree, source []byte) []string {
	var parts []string

	// Find import statements
	for _, node := range tree.Root.Children {
		if node.Type == "import_statement" {
			parts = append(parts, node.GetContent(source))
		}
	}

	return parts
}

func (c *CodeChunker) extractPythonContext(tree *Tree, source []byte) []string {
	var parts []string

	// Find import statements
	for _, node := range tree.Root.Children {
		if node.Type == "import_statement" || node.Type == "import_from_statement" {
			parts = append(parts, node.GetContent(source))
		}
	}

	return parts
}

// chunkHeuristic is the Tier B fallback for unsupported languages,
// failed parses, and (via splitSpanByHeuristic) oversized Tier A spans.
func (c *CodeChunker) chunkHeuristic(file *FileInput, maxLines int) ([]*Chunk, error) {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	lines := strings.Split(content, "\n")
	windows := heuristicWindows(lines, maxLines)

	chunks := make([]*Chunk, 0, len(windows))
	now := time.Now()

	for _, w := range windows {
		chunkContent := strings.Join(lines[w[0]:w[1]], "\n")
		if strings.TrimSpace(chunkContent) == "" {
			continue
		}
		startLine := w[0] + 1 // 1-indexed
		endLine := w[1]       // inclusive

		chunk := &Chunk{
			ID:          generateChunkID(file.Path, chunkContent),
			FilePath:    file.Path,
			Content:     chunkContent,
			RawContent:  chunkContent,
			Context:     "",
			ContentType: ContentTypeText,
			Language:    file.Language,
			StartLine:   startLine,
			EndLine:     endLine,
			Symbols:     nil,
			Metadata:    make(map[string]string),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

// generateChunkID generates a content-addressable chunk ID from file path and content.
// The ID is derived from filePath and content hash, making it stable across line number
// shifts while preserving file context.
//
// Properties:
//   - Same content in same file = same ID (stable across line shifts)
//   - Different content in same file = different ID (triggers re-embedding)
//   - Same content in different files = different IDs (preserves file context)
func generateChunkID(filePath string, content string) string {
	// Hash the content first
	contentHash := sha256.Sum256([]byte(content))
	contentHashStr := hex.EncodeToString(contentHash[:])[:16]

	// Combine with file path for uniqueness per file
	input := fmt.Sprintf("%s:%s", filePath, contentHashStr)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}

// combineContextAndContent combines context and raw content into full content
func combineContextAndContent(context, rawContent string) string {
	if context == "" {
		return rawContent
	}
	return context + "\n\n" + rawContent
}

// enrichContextWithFilePath prepends a file path marker to the context.
// This helps embedding models understand file location and scope.
// The marker format is language-appropriate (// for Go/JS/TS, # for Python).
func (c *CodeChunker) enrichContextWithFilePath(filePath, language, existingContext string) string {
	if filePath == "" {
		return existingContext
	}

	// Use language-appropriate comment syntax
	var marker string
	switch language {
	case "python":
		marker = fmt.Sprintf("# File: %s", filePath)
	default:
		// Go, TypeScript, JavaScript, etc. use //
		marker = fmt.Sprintf("// File: %s", filePath)
	}

	if existingContext == "" {
		return marker
	}
	return marker + "\n" + existingContext
}
