/*
 * Copyright 2022 Google LLC.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package expression

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/google/yggdrasil-pmml/dataspec"
	"github.com/google/yggdrasil-pmml/utils/status"
	"github.com/google/yggdrasil-pmml/utils/xmltree"
)

var expressionElements = map[string]bool{
	"Constant":       true,
	"FieldRef":       true,
	"Apply":          true,
	"NormContinuous": true,
	"NormDiscrete":   true,
	"Discretize":     true,
	"MapValues":      true,
	"TextIndex":      true,
	"Aggregate":      true,
}

// IsExpression tells if an element is an expression.
func IsExpression(el *xmltree.Element) bool {
	return expressionElements[el.Name]
}

// FirstExpression returns the first expression child of an element, or nil.
func FirstExpression(el *xmltree.Element) *xmltree.Element {
	for _, child := range el.Children {
		if IsExpression(child) {
			return child
		}
	}
	return nil
}

// Parser parses expressions. It knows the user defined functions that can be
// called.
type Parser struct {
	functions map[string]bool
}

// NewParser creates a parser knowing the given user defined functions.
func NewParser(functions map[string]*DefineFunction) *Parser {
	p := &Parser{functions: map[string]bool{}}
	for name := range functions {
		p.functions[name] = true
	}
	return p
}

// Parse parses an expression element.
func (p *Parser) Parse(el *xmltree.Element) (Expression, error) {
	expr, err := p.parse(el)
	if err != nil {
		return nil, status.Annotate(err, "%v", el)
	}
	return expr, nil
}

func (p *Parser) parse(el *xmltree.Element) (Expression, error) {
	switch el.Name {
	case "Constant":
		if missing, _ := el.BoolAttr("missing", false); missing {
			return &Constant{Value: dataspec.Missing}, nil
		}
		value, err := literal(el.Text, el.AttrOr("dataType", ""))
		if err != nil {
			return nil, err
		}
		return &Constant{Value: value}, nil

	case "FieldRef":
		mapMissingTo, err := optionalLiteral(el, "mapMissingTo", "")
		if err != nil {
			return nil, err
		}
		return &FieldRef{Field: el.AttrOr("field", ""), MapMissingTo: mapMissingTo}, nil

	case "Apply":
		return p.parseApply(el)

	case "NormContinuous":
		return parseNormContinuous(el)

	case "NormDiscrete":
		mapMissingTo, err := optionalLiteral(el, "mapMissingTo", "")
		if err != nil {
			return nil, err
		}
		return &NormDiscrete{
			Field:        el.AttrOr("field", ""),
			Value:        dataspec.String(el.AttrOr("value", "")),
			MapMissingTo: mapMissingTo,
		}, nil

	case "Discretize":
		return parseDiscretize(el)

	case "MapValues":
		return parseMapValues(el)

	case "TextIndex":
		return p.parseTextIndex(el)

	case "Aggregate":
		function := el.AttrOr("function", "")
		switch function {
		case "count", "sum", "average", "min", "max", "multiset":
		default:
			return nil, status.Schemaf("unsupported aggregate function %q", function)
		}
		return &Aggregate{
			Field:      el.AttrOr("field", ""),
			Function:   function,
			GroupField: el.AttrOr("groupField", ""),
		}, nil
	}
	return nil, status.Schemaf("unsupported expression <%s>", el.Name)
}

// literal parses a constant. Without data type, numbers are recognised.
func literal(raw string, dataType string) (dataspec.Value, error) {
	if len(dataType) == 0 {
		if value := dataspec.ParseValue(raw, dataspec.TypeInteger); value.IsValid() {
			return value, nil
		}
		if value := dataspec.ParseValue(raw, dataspec.TypeDouble); value.IsValid() {
			return value, nil
		}
		return dataspec.String(raw), nil
	}
	t, err := dataspec.ParseDataType(dataType)
	if err != nil {
		return dataspec.Missing, status.Schemaf("%v", err)
	}
	if t == dataspec.TypeString {
		return dataspec.String(raw), nil
	}
	value := dataspec.ParseValue(raw, t)
	if !value.IsValid() {
		return dataspec.Missing, status.Schemaf("%q is not a valid %v", raw, t)
	}
	return value, nil
}

func optionalLiteral(el *xmltree.Element, attr string, dataType string) (dataspec.Value, error) {
	raw, ok := el.Attr(attr)
	if !ok {
		return dataspec.Missing, nil
	}
	return literal(raw, dataType)
}

func (p *Parser) parseApply(el *xmltree.Element) (Expression, error) {
	apply := &Apply{Function: el.AttrOr("function", "")}
	if !IsBuiltin(apply.Function) && !p.functions[apply.Function] {
		return nil, status.Schemaf("unknown function %q", apply.Function)
	}
	var err error
	if apply.MapMissingTo, err = optionalLiteral(el, "mapMissingTo", ""); err != nil {
		return nil, err
	}
	if apply.DefaultValue, err = optionalLiteral(el, "defaultValue", ""); err != nil {
		return nil, err
	}
	switch treatment := el.AttrOr("invalidValueTreatment", "returnInvalid"); treatment {
	case "returnInvalid":
		apply.InvalidTreatment = ReturnInvalid
	case "asMissing":
		apply.InvalidTreatment = AsMissing
	case "asIs":
		apply.InvalidTreatment = AsIs
	default:
		return nil, status.Schemaf("unknown invalidValueTreatment %q", treatment)
	}
	for _, child := range el.Children {
		if !IsExpression(child) {
			continue
		}
		arg, err := p.Parse(child)
		if err != nil {
			return nil, err
		}
		apply.Args = append(apply.Args, arg)
	}
	if b, ok := builtins[apply.Function]; ok && !p.functions[apply.Function] {
		if len(apply.Args) < b.minArgs || (b.maxArgs >= 0 && len(apply.Args) > b.maxArgs) {
			return nil, status.Schemaf("function %q does not accept %d arguments", apply.Function, len(apply.Args))
		}
	}
	return apply, nil
}

func parseNormContinuous(el *xmltree.Element) (Expression, error) {
	norm := &NormContinuous{Field: el.AttrOr("field", "")}
	var err error
	if norm.MapMissingTo, err = optionalLiteral(el, "mapMissingTo", "double"); err != nil {
		return nil, err
	}
	if norm.Outliers, err = dataspec.ParseOutlierTreatment(el.AttrOr("outliers", "asIs")); err != nil {
		return nil, status.Schemaf("%v", err)
	}
	for _, child := range el.ChildrenNamed("LinearNorm") {
		var point LinearNorm
		if point.Orig, err = child.FloatAttr("orig", 0); err != nil {
			return nil, status.Schemaf("%v", err)
		}
		if point.Norm, err = child.FloatAttr("norm", 0); err != nil {
			return nil, status.Schemaf("%v", err)
		}
		norm.Points = append(norm.Points, point)
	}
	if len(norm.Points) < 2 {
		return nil, status.Schemaf("at least two LinearNorm points are required")
	}
	sort.SliceStable(norm.Points, func(i, j int) bool { return norm.Points[i].Orig < norm.Points[j].Orig })
	for i := 1; i < len(norm.Points); i++ {
		if norm.Points[i].Orig == norm.Points[i-1].Orig {
			return nil, status.Schemaf("duplicate LinearNorm orig %v", norm.Points[i].Orig)
		}
	}
	return norm, nil
}

func parseDiscretize(el *xmltree.Element) (Expression, error) {
	dataType := el.AttrOr("dataType", "string")
	discretize := &Discretize{Field: el.AttrOr("field", "")}
	var err error
	if discretize.MapMissingTo, err = optionalLiteral(el, "mapMissingTo", dataType); err != nil {
		return nil, err
	}
	if discretize.DefaultValue, err = optionalLiteral(el, "defaultValue", dataType); err != nil {
		return nil, err
	}
	for _, child := range el.ChildrenNamed("DiscretizeBin") {
		intervalEl := child.Child("Interval")
		if intervalEl == nil {
			return nil, status.Schemaf("DiscretizeBin without Interval")
		}
		interval, err := dataspec.ParseInterval(intervalEl)
		if err != nil {
			return nil, status.Schemaf("%v", err)
		}
		value, err := literal(child.AttrOr("binValue", ""), dataType)
		if err != nil {
			return nil, err
		}
		discretize.Bins = append(discretize.Bins, DiscretizeBin{Interval: interval, Value: value})
	}
	return discretize, nil
}

func parseMapValues(el *xmltree.Element) (Expression, error) {
	dataType := el.AttrOr("dataType", "string")
	t, err := dataspec.ParseDataType(dataType)
	if err != nil {
		return nil, status.Schemaf("%v", err)
	}
	mapValues := &MapValues{OutputColumn: el.AttrOr("outputColumn", ""), DataType: t}
	if mapValues.MapMissingTo, err = optionalLiteral(el, "mapMissingTo", dataType); err != nil {
		return nil, err
	}
	if mapValues.DefaultValue, err = optionalLiteral(el, "defaultValue", dataType); err != nil {
		return nil, err
	}
	for _, pair := range el.ChildrenNamed("FieldColumnPair") {
		mapValues.Pairs = append(mapValues.Pairs, FieldColumnPair{
			Field:  pair.AttrOr("field", ""),
			Column: pair.AttrOr("column", ""),
		})
	}
	table := el.Child("InlineTable")
	if table == nil {
		if el.Child("TableLocator") != nil {
			return nil, status.Schemaf("TableLocator is not supported")
		}
		return mapValues, nil
	}
	mapValues.Rows = inlineTable(table)
	return mapValues, nil
}

// inlineTable returns the rows of an <InlineTable>: column name to cell text.
func inlineTable(el *xmltree.Element) []map[string]string {
	var rows []map[string]string
	for _, rowEl := range el.ChildrenNamed("row") {
		row := make(map[string]string, len(rowEl.Children))
		for _, cell := range rowEl.Children {
			row[cell.Name] = cell.Text
		}
		rows = append(rows, row)
	}
	return rows
}

func (p *Parser) parseTextIndex(el *xmltree.Element) (Expression, error) {
	distance, err := el.IntAttr("maxLevenshteinDistance", 0)
	if err != nil {
		return nil, status.Schemaf("%v", err)
	}
	if distance != 0 {
		return nil, status.Schemaf("fuzzy matching (maxLevenshteinDistance=%d) is not supported", distance)
	}
	caseSensitive, err := el.BoolAttr("isCaseSensitive", false)
	if err != nil {
		return nil, status.Schemaf("%v", err)
	}
	separator, err := regexp.Compile(el.AttrOr("wordSeparatorCharacterRE", `\s+`))
	if err != nil {
		return nil, status.Schemaf("bad wordSeparatorCharacterRE: %v", err)
	}
	index := &TextIndex{
		TextField:        el.AttrOr("textField", ""),
		CaseSensitive:    caseSensitive,
		LocalTermWeights: el.AttrOr("localTermWeights", "termFrequency"),
		WordSeparator:    separator,
	}
	switch index.LocalTermWeights {
	case "termFrequency", "binary", "logarithmic", "augmentedNormalizedTermFrequency":
	default:
		return nil, status.Schemaf("unsupported localTermWeights %q", index.LocalTermWeights)
	}

	for _, normEl := range el.ChildrenNamed("TextIndexNormalization") {
		table := normEl.Child("InlineTable")
		if table == nil {
			continue
		}
		inField := normEl.AttrOr("inField", "string")
		outField := normEl.AttrOr("outField", "stem")
		regexField := normEl.AttrOr("regexField", "regex")
		for _, row := range inlineTable(table) {
			normalization := TextNormalization{Input: row[inField], Output: row[outField]}
			if row[regexField] == "true" {
				if normalization.Pattern, err = regexp.Compile(row[inField]); err != nil {
					return nil, status.Schemaf("bad normalization pattern: %v", err)
				}
			}
			index.Normalizations = append(index.Normalizations, normalization)
		}
	}

	termEl := FirstExpression(el)
	if termEl == nil {
		return nil, status.Schemaf("TextIndex without term expression")
	}
	if index.Term, err = p.Parse(termEl); err != nil {
		return nil, err
	}
	return index, nil
}

// ParseDerivedField parses a <DerivedField> element.
func (p *Parser) ParseDerivedField(el *xmltree.Element) (*DerivedField, error) {
	field, err := dataspec.ParseFieldHeader(el, dataspec.TypeUnknown)
	if err != nil {
		return nil, err
	}
	exprEl := FirstExpression(el)
	if exprEl == nil {
		return nil, status.Schemaf("derived field %q has no expression", field.Name)
	}
	expr, err := p.Parse(exprEl)
	if err != nil {
		return nil, status.Annotate(err, "derived field %q", field.Name)
	}
	return &DerivedField{Field: field, Expr: expr}, nil
}

// Transformations is a <TransformationDictionary> or <LocalTransformations>
// element.
type Transformations struct {
	Fields    []*DerivedField
	Functions map[string]*DefineFunction
}

// ParseTransformations parses a <TransformationDictionary> (with functions)
// or a <LocalTransformations> element. "functions" are the user defined
// functions of the enclosing document.
func ParseTransformations(el *xmltree.Element, functions map[string]*DefineFunction) (*Transformations, error) {
	t := &Transformations{Functions: map[string]*DefineFunction{}}
	for name, function := range functions {
		t.Functions[name] = function
	}

	// Functions may call each other: their names are known before parsing
	// their bodies.
	parser := NewParser(t.Functions)
	for _, child := range el.ChildrenNamed("DefineFunction") {
		parser.functions[child.AttrOr("name", "")] = true
	}
	for _, child := range el.ChildrenNamed("DefineFunction") {
		function, err := parser.parseDefineFunction(child)
		if err != nil {
			return nil, err
		}
		if _, ok := t.Functions[function.Name]; ok {
			return nil, status.Schemaf("duplicate function %q", function.Name)
		}
		t.Functions[function.Name] = function
	}
	if err := checkRecursion(t.Functions); err != nil {
		return nil, err
	}

	names := map[string]bool{}
	for _, child := range el.ChildrenNamed("DerivedField") {
		field, err := parser.ParseDerivedField(child)
		if err != nil {
			return nil, err
		}
		if names[field.Name] {
			return nil, status.Schemaf("duplicate derived field %q", field.Name)
		}
		names[field.Name] = true
		t.Fields = append(t.Fields, field)
	}
	return t, nil
}

// checkRecursion rejects functions calling themselves, directly or through
// other functions.
func checkRecursion(functions map[string]*DefineFunction) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := map[string]int{}
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case visiting:
			return status.Schemaf("cycle in functions: %v", append(path, name))
		case done:
			return nil
		}
		state[name] = visiting
		for _, callee := range calledFunctions(functions[name].Body, functions) {
			if err := visit(callee, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}
	for name := range functions {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parseDefineFunction(el *xmltree.Element) (*DefineFunction, error) {
	function := &DefineFunction{Name: el.AttrOr("name", "")}
	if len(function.Name) == 0 {
		return nil, status.Schemaf("DefineFunction without name")
	}
	if raw, ok := el.Attr("dataType"); ok {
		dataType, err := dataspec.ParseDataType(raw)
		if err != nil {
			return nil, status.Schemaf("function %q: %v", function.Name, err)
		}
		function.DataType = dataType
	}
	for _, child := range el.ChildrenNamed("ParameterField") {
		parameter, err := dataspec.ParseFieldHeader(child, dataspec.TypeUnknown)
		if err != nil {
			return nil, err
		}
		function.Parameters = append(function.Parameters, parameter)
	}
	bodyEl := FirstExpression(el)
	if bodyEl == nil {
		return nil, status.Schemaf("function %q has no body", function.Name)
	}
	body, err := p.Parse(bodyEl)
	if err != nil {
		return nil, status.Annotate(err, "function %q", function.Name)
	}
	function.Body = body

	parameters := map[string]bool{}
	for _, parameter := range function.Parameters {
		parameters[parameter.Name] = true
	}
	for _, ref := range body.References() {
		if !parameters[ref] {
			return nil, status.Schemaf("function %q reads %q which is not a parameter", function.Name, ref)
		}
	}
	return function, nil
}

// Field returns a derived field by name, or nil.
func (t *Transformations) Field(name string) *DerivedField {
	if t == nil {
		return nil
	}
	for _, field := range t.Fields {
		if field.Name == name {
			return field
		}
	}
	return nil
}

// CheckNames rejects derived fields named like a field already known to the
// enclosing scope.
func (t *Transformations) CheckNames(taken func(name string) bool) error {
	if t == nil {
		return nil
	}
	for _, field := range t.Fields {
		if taken(field.Name) {
			return status.Schemaf("derived field %q redefines field %q", field.Name, field.Name)
		}
	}
	return nil
}

// Validate checks that the derived fields only read known fields (as told by
// "known") or other derived fields, and that they do not depend on
// themselves.
func (t *Transformations) Validate(known func(name string) bool) error {
	if t == nil {
		return nil
	}
	byName := make(map[string]*DerivedField, len(t.Fields))
	for _, field := range t.Fields {
		byName[field.Name] = field
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := map[string]int{}
	var visit func(field *DerivedField, path []string) error
	visit = func(field *DerivedField, path []string) error {
		switch state[field.Name] {
		case visiting:
			return status.Schemaf("cycle in derived fields: %v", append(path, field.Name))
		case done:
			return nil
		}
		state[field.Name] = visiting
		for _, ref := range field.Expr.References() {
			if dep, ok := byName[ref]; ok {
				if err := visit(dep, append(path, field.Name)); err != nil {
					return err
				}
				continue
			}
			if !known(ref) {
				return status.Schemaf("derived field %q reads unknown field %q", field.Name, ref)
			}
		}
		state[field.Name] = done
		return nil
	}
	for _, field := range t.Fields {
		if err := visit(field, nil); err != nil {
			return err
		}
	}
	return nil
}

// String is used in debug logs.
func (t *Transformations) String() string {
	if t == nil {
		return "none"
	}
	return fmt.Sprintf("%d derived fields, %d functions", len(t.Fields), len(t.Functions))
}
