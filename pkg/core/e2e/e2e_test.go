package e2e

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bratushka/cypher/pkg/core"
	"github.com/bratushka/cypher/pkg/errdefs"
	"github.com/bratushka/cypher/pkg/models"
	"github.com/bratushka/cypher/pkg/provider"
)

var (
	humanName = models.String()
	humanAge  = models.Integer(models.Optional())
	humanRun  = models.String()
	Human     = models.MustDefineNode("Human",
		models.Field("name", humanName),
		models.Field("age", humanAge),
		models.Field("run", humanRun),
		models.PrimaryKey("name"),
	)

	knowsSince = models.Integer(models.Optional())
	Knows      = models.MustDefineEdge("Knows", models.Field("since", knowsSince))
)

var _ = Describe("Cypher E2E", Ordered, func() {
	var (
		ctx           context.Context
		ann, bob, cat *models.Instance
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("Should create nodes and relationships", func() {
		ann = Human.MustNew(map[string]any{"name": "ann-" + runID, "age": 30, "run": runID})
		bob = Human.MustNew(map[string]any{"name": "bob-" + runID, "age": 41, "run": runID})
		cat = Human.MustNew(map[string]any{"name": "cat-" + runID, "run": runID})
		first := Knows.MustNew(map[string]any{"since": 2001}, models.Between(ann, bob))
		second := Knows.MustNew(nil, models.Between(bob, cat))

		res, err := core.Create(first, second).WithExecutor(db, database).Result(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Records).To(HaveLen(1))
		Expect(res.Columns).To(Equal([]string{"_a", "_b", "_c", "_d", "_e"}))

		graph := provider.ExtractGraph(res)
		Expect(graph.Nodes).To(HaveLen(3))
		Expect(graph.Edges).To(HaveLen(2))
	})

	It("Should match a node by instance", func() {
		res, err := core.NewQuery(core.WithExecutor(db, database)).Match(ann).Result(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Records).To(HaveLen(1))

		node, ok := res.Records[0].Values[0].(provider.Node)
		Expect(ok).To(BeTrue())
		Expect(node.Labels).To(ContainElement("Human"))
		Expect(node.Properties).To(HaveKeyWithValue("name", "ann-"+runID))
		Expect(node.Properties).To(HaveKeyWithValue("age", BeNumerically("==", 30)))
	})

	It("Should follow directed relationships with conditions", func() {
		By("Matching who ann knows")
		q := core.NewQuery(core.WithExecutor(db, database)).
			Match(Human, core.Eq(humanRun, runID)).
			ConnectedThrough(Knows).To(Human).
			Where(core.Gt(humanAge, 40))
		Eventually(func() int {
			res, err := q.Result(ctx, "_c")
			if err != nil {
				return -1
			}
			return len(res.Records)
		}, timeout, interval).Should(Equal(1))

		By("Matching backwards from cat")
		res, err := core.NewQuery(core.WithExecutor(db, database)).
			Match(cat).ConnectedThrough(Knows).By(Human).
			Result(ctx, "_c")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Records).To(HaveLen(1))
		Expect(res.Records[0].Values[0].(provider.Node).Properties).To(HaveKeyWithValue("name", "bob-"+runID))
	})

	It("Should match variable length paths", func() {
		res, err := core.NewQuery(core.WithExecutor(db, database)).
			Match(ann).
			ConnectedThrough(Knows, core.Between(1, 2)).To(Human).
			Result(ctx, "_c")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Records).To(HaveLen(2))

		names := make([]any, 0, len(res.Records))
		for _, rec := range res.Records {
			names = append(names, rec.Values[0].(provider.Node).Properties["name"])
		}
		Expect(names).To(ConsistOf("bob-"+runID, "cat-"+runID))
	})

	It("Should filter with membership tests", func() {
		res, err := core.NewQuery(core.WithExecutor(db, database)).
			Match(Human, core.Eq(humanRun, runID), core.In(humanName, "ann-"+runID, "cat-"+runID)).
			Result(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Records).To(HaveLen(2))
	})

	It("Should refuse to run without an executor", func() {
		_, err := core.NewQuery().Match(Human).Result(ctx)
		Expect(errors.Is(err, errdefs.ErrExecutorNotConfigured)).To(BeTrue())
	})
})
