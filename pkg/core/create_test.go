package core

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bratushka/cypher/pkg/errdefs"
	"github.com/bratushka/cypher/pkg/models"
)

func TestCreate(t *testing.T) {
	ann := Human.MustNew(map[string]any{"name": "ann", "age": 30, "nick": "a"})
	bob := Human.MustNew(map[string]any{"name": "bob"})
	cat := Animal.MustNew(nil)
	knows := Knows.MustNew(map[string]any{"reason": "work"}, models.Between(ann, bob))

	tests := []struct {
		name string
		stmt *CreateStatement
		want string
	}{
		{
			name: "single node",
			stmt: Create(cat),
			want: "CREATE (_a:`Animal`)\nRETURN _a",
		},
		{
			name: "nodes before edges",
			stmt: Create(knows, ann, bob),
			want: "CREATE (_a:`Human` { `age`: 30, `name`: \"ann\" }), (_b:`Human` { `name`: \"bob\" }), " +
				"(_a)-[_c:`Knows` { `reason`: \"work\" }]->(_b)\nRETURN _a, _b, _c",
		},
		{
			name: "endpoints added once",
			stmt: Create(knows, cat, knows),
			want: "CREATE (_a:`Animal`), (_b:`Human` { `age`: 30, `name`: \"ann\" }), (_c:`Human` { `name`: \"bob\" }), " +
				"(_b)-[_d:`Knows` { `reason`: \"work\" }]->(_c)\nRETURN _a, _b, _c, _d",
		},
		{
			name: "extras on request",
			stmt: Create(ann).WithExtras(),
			want: "CREATE (_a:`Human` { `age`: 30, `name`: \"ann\", `nick`: \"a\" })\nRETURN _a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.stmt.Render()
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Render() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCreateErrors(t *testing.T) {
	loose := Knows.MustNew(nil)

	_, err := Create().Render()
	assert.ErrorIs(t, err, errdefs.ErrIntegrity)

	_, err = Create(nil).Render()
	assert.ErrorIs(t, err, errdefs.ErrIntegrity)

	_, err = Create(loose).Render()
	assert.ErrorIs(t, err, errdefs.ErrIntegrity)

	_, err = Create(Animal.MustNew(nil)).Result(context.Background())
	assert.ErrorIs(t, err, errdefs.ErrNotImplemented)

	rec := &recordingProvider{}
	_, err = Create(Animal.MustNew(nil)).WithExecutor(rec, "zoo").Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "zoo", rec.database)
	assert.Equal(t, "CREATE (_a:`Animal`)\nRETURN _a", rec.query)
}
