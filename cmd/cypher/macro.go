package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"
)

type Macro struct {
	Name        string
	Args        []string
	Statements  []string
	Description string
}

type MacroManager struct {
	Macros map[string]*Macro
}

func NewMacroManager() *MacroManager {
	return &MacroManager{
		Macros: make(map[string]*Macro),
	}
}

func (mm *MacroManager) AddMacro(macro *Macro, overwrite bool) {
	if _, exists := mm.Macros[macro.Name]; exists && !overwrite {
		return
	}
	mm.Macros[macro.Name] = macro
}

// ExecuteMacro returns the statements of the named macro with every $arg
// replaced by its value. Longer argument names are replaced first so $id
// does not clobber $ids.
func (mm *MacroManager) ExecuteMacro(name string, args []string) ([]string, error) {
	macro, exists := mm.Macros[name]
	if !exists {
		return nil, fmt.Errorf("macro '%s' not found", name)
	}

	if len(args) != len(macro.Args) {
		return nil, fmt.Errorf("macro '%s' expects %d arguments, got %d", name, len(macro.Args), len(args))
	}

	order := make([]int, len(macro.Args))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return len(macro.Args[order[a]]) > len(macro.Args[order[b]])
	})

	statements := make([]string, len(macro.Statements))
	for i, stmt := range macro.Statements {
		for _, j := range order {
			stmt = strings.ReplaceAll(stmt, "$"+macro.Args[j], args[j])
		}
		statements[i] = stmt
	}

	return statements, nil
}

// LoadMacrosFromFile loads user macros. They replace defaults of the same
// name.
func (mm *MacroManager) LoadMacrosFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open macro file: %w", err)
	}
	defer file.Close()
	return mm.loadMacros(file, true)
}

// LoadMacrosFromString loads macros from content; name is used in errors.
func (mm *MacroManager) LoadMacrosFromString(name, content string) error {
	if err := mm.loadMacros(strings.NewReader(content), true); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// loadMacros reads macro definitions. A definition is a ":name args... #
// description" line followed by statements, each ending with ";".
func (mm *MacroManager) loadMacros(reader io.Reader, overwrite bool) error {
	scanner := bufio.NewScanner(reader)
	var currentMacro *Macro
	var currentStatement strings.Builder
	lineNumber := 0

	finish := func() error {
		if currentMacro == nil {
			return nil
		}
		if currentStatement.Len() > 0 {
			currentMacro.Statements = append(currentMacro.Statements, currentStatement.String())
			currentStatement.Reset()
		}
		if len(currentMacro.Statements) == 0 {
			return fmt.Errorf("macro '%s' has no statements (line %d)", currentMacro.Name, lineNumber)
		}
		mm.AddMacro(currentMacro, overwrite)
		return nil
	}

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, ":") {
			if err := finish(); err != nil {
				return err
			}

			parts := strings.Fields(strings.TrimPrefix(line, ":"))
			if len(parts) == 0 {
				return fmt.Errorf("invalid macro definition at line %d: missing macro name", lineNumber)
			}
			name := parts[0]
			args := parts[1:]

			description := ""
			for i, part := range parts {
				if strings.HasPrefix(part, "#") {
					description = strings.TrimSpace(strings.Join(parts[i:], " ")[1:])
					args = parts[1:i]
					break
				}
			}

			if !isValidMacroName(name) {
				return fmt.Errorf("invalid macro name '%s' at line %d", name, lineNumber)
			}
			for _, arg := range args {
				if !isValidMacroName(arg) {
					return fmt.Errorf("invalid argument name '%s' of macro '%s' at line %d", arg, name, lineNumber)
				}
			}

			currentMacro = &Macro{Name: name, Args: args, Description: description}
		} else if currentMacro == nil {
			return fmt.Errorf("statement found outside of macro definition at line %d", lineNumber)
		} else {
			if currentStatement.Len() > 0 {
				currentStatement.WriteString("\n")
			}
			currentStatement.WriteString(line)
			if strings.HasSuffix(line, ";") {
				currentMacro.Statements = append(currentMacro.Statements, currentStatement.String())
				currentStatement.Reset()
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading macro file: %w", err)
	}
	return finish()
}

func isValidMacroName(name string) bool {
	if len(name) == 0 {
		return false
	}
	for i, r := range name {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
		} else {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
				return false
			}
		}
	}
	return true
}
