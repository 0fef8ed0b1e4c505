package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bratushka/cypher/pkg/errdefs"
	"github.com/bratushka/cypher/pkg/values"
)

func TestSchemaDefinition(t *testing.T) {
	name := String()
	age := Integer(Optional())
	human, err := DefineNode("Human", Field("name", name), Field("age", age), PrimaryKey("name"))
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "name"}, human.PropNames())
	assert.Equal(t, "name", human.PrimaryKey())
	assert.Same(t, human, name.Owner())

	got, ok := human.NameOf(age)
	assert.True(t, ok)
	assert.Equal(t, "age", got)

	_, ok = human.NameOf(String())
	assert.False(t, ok)

	assert.Equal(t, []string{"Human"}, human.Labels())
	assert.Empty(t, AnyNode.Labels())
}

func TestSchemaDefinitionErrors(t *testing.T) {
	bound := String()
	MustDefineNode("Owner", Field("x", bound))

	tests := []struct {
		name string
		def  func() (*Schema, error)
	}{
		{"empty name", func() (*Schema, error) { return DefineNode("") }},
		{"prop reused", func() (*Schema, error) { return DefineNode("Other", Field("x", bound)) }},
		{"unknown primary key", func() (*Schema, error) { return DefineNode("Pk", PrimaryKey("missing")) }},
		{"edge extends node", func() (*Schema, error) {
			return DefineEdge("Knows", Extends(MustDefineNode("Base")))
		}},
		{"same prop twice", func() (*Schema, error) {
			p := String()
			return DefineNode("Twice", Field("a", p), Field("b", p))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.def()
			assert.Error(t, err)
		})
	}
}

func TestInheritance(t *testing.T) {
	name := String()
	person := MustDefineNode("Person", Field("name", name), PrimaryKey("name"))
	admin := MustDefineNode("Admin", Extends(person), Field("level", Integer()))

	assert.Equal(t, []string{"level", "name"}, admin.PropNames())
	assert.Equal(t, "name", admin.PrimaryKey())
	assert.True(t, admin.Is(person))
	assert.False(t, person.Is(admin))

	n, ok := admin.NameOf(name)
	assert.True(t, ok)
	assert.Equal(t, "name", n)

	inst, err := admin.New(map[string]any{"name": "root", "level": 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin"}, inst.Labels())
}

func TestNew(t *testing.T) {
	calls := 0
	counter := func() any {
		calls++
		return calls
	}
	thing := MustDefineNode("Thing",
		Field("name", String()),
		Field("nick", String(Optional())),
		Field("count", Integer(Default(counter))),
		Field("ratio", Float(Optional())),
		Field("born", Date(Optional())),
	)

	a, err := thing.New(map[string]any{"name": "a", "ratio": 2, "born": time.Date(2000, 1, 2, 15, 0, 0, 0, time.UTC), "extra": []int{1}})
	require.NoError(t, err)
	b, err := thing.New(map[string]any{"name": "b"})
	require.NoError(t, err)

	count, _ := a.Get("count")
	assert.Equal(t, int64(1), count)
	count, _ = b.Get("count")
	assert.Equal(t, int64(2), count)

	ratio, _ := a.Get("ratio")
	assert.Equal(t, 2.0, ratio)

	born, _ := a.Get("born")
	assert.Equal(t, values.NewDate(2000, 1, 2), born)

	nick, ok := a.Get("nick")
	assert.True(t, ok)
	assert.Nil(t, nick)

	assert.Equal(t, map[string]any{"extra": []int{1}}, a.Extras())
}

func TestNewErrors(t *testing.T) {
	human := MustDefineNode("Human", Field("age", Integer()), Field("name", String()))

	_, err := human.New(map[string]any{"age": 3})
	require.ErrorIs(t, err, errdefs.ErrMissingRequiredField)
	assert.Equal(t, "Cannot initialize a `Human` without `name`", err.Error())

	_, err = human.New(map[string]any{"age": "3", "name": 5})
	require.ErrorIs(t, err, errdefs.ErrTypeMismatch)
	assert.Contains(t, err.Error(), "the `age` property of `Human`")

	_, err = human.New(map[string]any{"age": uint64(1) << 63, "name": "x"})
	assert.ErrorIs(t, err, errdefs.ErrConstraintViolation)
}

func TestLabels(t *testing.T) {
	human := MustDefineNode("Human")

	tests := []struct {
		name   string
		labels []string
		want   []string
	}{
		{"none", nil, []string{"Human"}},
		{"extra", []string{"Person"}, []string{"Human", "Person"}},
		{"own name repeated", []string{"Human", "Person", "Human"}, []string{"Human", "Person"}},
		{"duplicates", []string{"B", "A", "B"}, []string{"A", "B", "Human"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := human.New(nil, WithLabels(tt.labels...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, inst.Labels())
		})
	}

	inst := human.MustNew(nil)
	require.NoError(t, inst.SetLabelsFrom([]any{"Person"}))
	assert.Equal(t, []string{"Human", "Person"}, inst.Labels())

	err := inst.SetLabelsFrom([]any{"Person", 1})
	assert.ErrorIs(t, err, errdefs.ErrTypeMismatch)
	assert.Equal(t, []string{"Human", "Person"}, inst.Labels())

	assert.ErrorIs(t, inst.SetLabels([]string{""}), errdefs.ErrConstraintViolation)
}

func TestEdgeEndpoints(t *testing.T) {
	user := MustDefineNode("User")
	knows := MustDefineEdge("Knows")
	a, b := user.MustNew(nil), user.MustNew(nil)

	e, err := knows.New(nil, Between(a, b))
	require.NoError(t, err)
	from, to := e.Endpoints()
	assert.Same(t, a, from)
	assert.Same(t, b, to)
	assert.True(t, e.IsEdge())

	_, err = user.New(nil, Between(a, b))
	assert.ErrorIs(t, err, errdefs.ErrIntegrity)

	_, err = knows.New(nil, Between(a, e))
	assert.ErrorIs(t, err, errdefs.ErrIntegrity)
}

func TestRepr(t *testing.T) {
	model := MustDefineNode("MyModel",
		Field("boolean", Boolean()),
		Field("floating", Float()),
		Field("integer", Integer()),
		Field("string", String()),
		Field("missing", String(Optional())),
	)
	inst, err := model.New(map[string]any{
		"boolean":  true,
		"floating": 1.1,
		"integer":  1,
		"string":   `text"`,
		"extra":    "hidden",
	}, WithLabels("First", "!@#$%^&*()", "Sec`ond"))
	require.NoError(t, err)

	got, err := inst.Repr(RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t,
		":`!@#$%^&*()`:`First`:`MyModel`:`Sec``ond` { `boolean`: true, `floating`: 1.1, `integer`: 1, `string`: \"text\\\"\" }",
		got)

	got, err = inst.Repr(RenderOptions{IncludeExtras: true})
	require.NoError(t, err)
	assert.Contains(t, got, "`extra`: \"hidden\", `floating`: 1.1")

	empty := MustDefineNode("Empty").MustNew(nil)
	got, err = empty.Repr(RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, ":`Empty`", got)
}

func TestUIDDefault(t *testing.T) {
	thing := MustDefineNode("Thing", Field("uid", UID()), PrimaryKey("uid"))
	a, b := thing.MustNew(nil), thing.MustNew(nil)

	_, av, err := a.PrimaryKey()
	require.NoError(t, err)
	_, bv, err := b.PrimaryKey()
	require.NoError(t, err)
	assert.NotEqual(t, av, bv)

	c := thing.MustNew(map[string]any{"uid": "fixed"})
	_, cv, err := c.PrimaryKey()
	require.NoError(t, err)
	assert.Equal(t, "fixed", cv)

	_, _, err = MustDefineNode("NoPk").MustNew(nil).PrimaryKey()
	assert.ErrorIs(t, err, errdefs.ErrIntegrity)
}
