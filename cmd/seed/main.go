// Command seed loads a demo office graph: people, organizations, topics,
// projects, and the meetings that connect them. Running it twice is safe,
// entities upsert and re-observed relationships gain strength.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skeinhq/skein/backend/internal/queue"
	"github.com/skeinhq/skein/backend/internal/util"
	"github.com/skeinhq/skein/backend/pkg/common"
	"github.com/skeinhq/skein/backend/pkg/logger"
	"github.com/skeinhq/skein/backend/pkg/logger/console"
	"github.com/skeinhq/skein/backend/pkg/store"
	memstore "github.com/skeinhq/skein/backend/pkg/store/memory"
	graphstorage "github.com/skeinhq/skein/backend/pkg/store/pgx"
)

const (
	dbConnectTries = 30
	dbConnectDelay = 2 * time.Second
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	demoPrint := flag.Bool("demo-print", false, "seed an in-memory store and print the graph as JSON instead of writing to Postgres")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *demoPrint {
		printDemo(ctx)
		return
	}

	databaseURL := util.GetEnv("DATABASE_URL")
	if databaseURL == "" {
		logger.Fatal("DATABASE_URL must be set")
	}

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	if err := util.RetryErrWithDelay(ctx, dbConnectTries, dbConnectDelay, conn.Ping); err != nil {
		logger.Fatal("Database never became reachable", "err", err)
	}

	if err := seed(ctx, graphstorage.NewGraphDBStorage(conn)); err != nil {
		logger.Fatal("Failed to seed database", "err", err)
	}

	announce()
	logger.Info("[Seed] Done")
}

func printDemo(ctx context.Context) {
	st := memstore.New()
	if err := seed(ctx, st); err != nil {
		logger.Fatal("Failed to seed demo store", "err", err)
	}

	g, err := st.FetchGraph(ctx, store.GraphFilter{Limit: store.MaxGraphLimit})
	if err != nil {
		logger.Fatal("Failed to fetch seeded graph", "err", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		logger.Fatal("Failed to print graph", "err", err)
	}
}

// announce tells running backends the graph changed. Best effort, a seed
// without a broker is still a successful seed.
func announce() {
	if !queue.Configured() {
		return
	}

	conn, err := queue.Init()
	if err != nil {
		logger.Warn("[Seed] Could not reach RabbitMQ, skipping announcement", "err", err)
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Warn("[Seed] Could not open channel, skipping announcement", "err", err)
		return
	}
	defer ch.Close()

	if err := queue.PublishGraphUpdated(ch, "seed"); err != nil {
		logger.Warn("[Seed] Failed to announce update", "err", err)
		return
	}
	logger.Info("[Seed] Announced graph update")
}

func seed(ctx context.Context, st store.Storage) error {
	entities, meetings, edges, reobserved := demoData()

	if err := st.SaveEntities(ctx, entities); err != nil {
		return err
	}
	logger.Info("[Seed] Entities saved", "count", len(entities))

	// Meetings before relationships, edges to unknown endpoints are
	// silently skipped.
	for _, m := range meetings {
		if err := st.PutMeeting(ctx, m); err != nil {
			return err
		}
	}
	logger.Info("[Seed] Meetings saved", "count", len(meetings))

	if err := st.SaveRelationships(ctx, edges); err != nil {
		return err
	}
	logger.Info("[Seed] Relationships saved", "count", len(edges))

	// Second observation of the recurring relationships, their strength
	// grows the same way repeated meeting extractions would grow it.
	if err := st.SaveRelationships(ctx, reobserved); err != nil {
		return err
	}
	logger.Info("[Seed] Relationships strengthened", "count", len(reobserved))

	return nil
}

func demoData() ([]common.Node, []store.MeetingRecord, []common.Edge, []common.Edge) {
	// meetings becomes the node's rendered weight, the same meeting_count
	// the extraction pipeline would accumulate.
	person := func(id, name, role string, meetings int) common.Node {
		return common.Node{
			ID: id, Label: name, Type: common.NodeTypePerson,
			Properties: common.Properties{"name": name, "role": role, "meeting_count": meetings},
		}
	}
	org := func(id, name, industry string) common.Node {
		return common.Node{
			ID: id, Label: name, Type: common.NodeTypeOrganization,
			Properties: common.Properties{"name": name, "industry": industry},
		}
	}
	topic := func(id, name string) common.Node {
		return common.Node{
			ID: id, Label: name, Type: common.NodeTypeTopic,
			Properties: common.Properties{"name": name},
		}
	}
	project := func(id, name, status string) common.Node {
		return common.Node{
			ID: id, Label: name, Type: common.NodeTypeProject,
			Properties: common.Properties{"name": name, "status": status},
		}
	}
	edge := func(source string, t common.EdgeType, target, context string) common.Edge {
		return common.Edge{
			ID:     common.EdgeID(source, t, target),
			Source: source, Target: target, Type: t,
			Properties: common.Properties{"context": context},
		}
	}
	date := func(day string) time.Time {
		d, _ := time.Parse("2006-01-02", day)
		return d
	}

	entities := []common.Node{
		person("p-mara", "Mara Voss", "Head of Research", 3),
		person("p-jonas", "Jonas Brandt", "Backend Engineer", 1),
		person("p-lena", "Lena Okafor", "Product Lead", 2),
		person("p-tomas", "Tomás Silva", "Data Scientist", 1),
		person("p-priya", "Priya Nair", "Consultant", 1),
		org("o-skein", "Skein Labs", "software"),
		org("o-northwind", "Northwind Consulting", "consulting"),
		topic("t-knowledge-graphs", "Knowledge Graphs"),
		topic("t-meeting-automation", "Meeting Automation"),
		topic("t-roadmap", "Quarterly Roadmap"),
		project("pr-atlas", "Atlas Rollout", "active"),
		project("pr-miner", "Meeting Miner", "active"),
	}

	meetings := []store.MeetingRecord{
		{
			ID:    "m-atlas-kickoff",
			Title: "Atlas Kickoff",
			Date:  date("2025-06-02"),
			Summary: "Kickoff for the Atlas rollout. Mara walked through the knowledge " +
				"graph architecture, Jonas took ownership of the ingestion path, and Lena " +
				"mapped the first customer milestones.",
		},
		{
			ID:    "m-roadmap-review",
			Title: "Roadmap Review",
			Date:  date("2025-06-16"),
			Summary: "Quarterly roadmap review with Northwind Consulting. Priya " +
				"presented the adoption numbers and the group agreed to pull the Atlas " +
				"beta forward by two weeks.",
		},
		{
			ID:    "m-research-sync",
			Title: "Research Sync July",
			Date:  date("2025-07-07"),
			Summary: "Monthly research sync. Tomás demoed the meeting miner prototype " +
				"extracting entities from call transcripts, discussion focused on how the " +
				"extraction feeds the knowledge graph.",
		},
	}

	edges := []common.Edge{
		edge("p-mara", common.EdgeTypeWorksAt, "o-skein", "research department"),
		edge("p-jonas", common.EdgeTypeWorksAt, "o-skein", "platform team"),
		edge("p-lena", common.EdgeTypeWorksAt, "o-skein", "product team"),
		edge("p-tomas", common.EdgeTypeWorksAt, "o-skein", "research department"),
		edge("p-priya", common.EdgeTypeWorksAt, "o-northwind", "advisory"),

		edge("p-mara", common.EdgeTypeKnows, "p-jonas", "weekly one-on-one"),
		edge("p-mara", common.EdgeTypeKnows, "p-lena", "leadership circle"),
		edge("p-jonas", common.EdgeTypeKnows, "p-tomas", "shared codebase"),
		edge("p-lena", common.EdgeTypeKnows, "p-priya", "customer program"),

		edge("p-jonas", common.EdgeTypeAssignedTo, "pr-atlas", "ingestion path"),
		edge("p-lena", common.EdgeTypeAssignedTo, "pr-atlas", "rollout planning"),
		edge("p-tomas", common.EdgeTypeAssignedTo, "pr-miner", "prototype owner"),

		edge("pr-atlas", common.EdgeTypeRelatesTo, "t-knowledge-graphs", "core architecture"),
		edge("pr-miner", common.EdgeTypeRelatesTo, "t-meeting-automation", "extraction pipeline"),
		edge("pr-miner", common.EdgeTypeRelatesTo, "t-knowledge-graphs", "feeds the graph"),

		edge("p-mara", common.EdgeTypeAttended, "m-atlas-kickoff", ""),
		edge("p-jonas", common.EdgeTypeAttended, "m-atlas-kickoff", ""),
		edge("p-lena", common.EdgeTypeAttended, "m-atlas-kickoff", ""),
		edge("p-mara", common.EdgeTypeAttended, "m-roadmap-review", ""),
		edge("p-lena", common.EdgeTypeAttended, "m-roadmap-review", ""),
		edge("p-priya", common.EdgeTypeAttended, "m-roadmap-review", ""),
		edge("p-mara", common.EdgeTypeAttended, "m-research-sync", ""),
		edge("p-tomas", common.EdgeTypeAttended, "m-research-sync", ""),

		edge("m-atlas-kickoff", common.EdgeTypeDiscussed, "t-knowledge-graphs", "architecture walkthrough"),
		edge("m-roadmap-review", common.EdgeTypeDiscussed, "t-roadmap", "beta schedule"),
		edge("m-research-sync", common.EdgeTypeDiscussed, "t-knowledge-graphs", "extraction quality"),
		edge("m-research-sync", common.EdgeTypeDiscussed, "t-meeting-automation", "prototype demo"),

		edge("o-northwind", common.EdgeTypeMentionedIn, "m-roadmap-review", "adoption numbers"),
		edge("pr-atlas", common.EdgeTypeMentionedIn, "m-atlas-kickoff", "kickoff subject"),
	}

	reobserved := []common.Edge{
		edge("p-mara", common.EdgeTypeKnows, "p-jonas", "weekly one-on-one"),
		edge("p-mara", common.EdgeTypeWorksAt, "o-skein", "research department"),
		edge("pr-atlas", common.EdgeTypeRelatesTo, "t-knowledge-graphs", "core architecture"),
	}

	return entities, meetings, edges, reobserved
}
