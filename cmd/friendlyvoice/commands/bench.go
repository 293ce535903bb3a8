package commands

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/d60-Lab/friendlyvoice/config"
	"github.com/d60-Lab/friendlyvoice/internal/feed"
	"github.com/d60-Lab/friendlyvoice/internal/mirror"
	"github.com/d60-Lab/friendlyvoice/internal/model"
	"github.com/d60-Lab/friendlyvoice/internal/repository"
	"github.com/d60-Lab/friendlyvoice/internal/social"
	"github.com/d60-Lab/friendlyvoice/pkg/logger"
)

var benchOpts struct {
	followers   int
	concurrency int
	page        int
	workers     int
	profiles    int
	mirrorReads int
	feedReads   int
	authors     int
	voces       int
	following   int
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmarks against the configured database and mirror backend",
	Long: `Benchmarks against the configured storage. Run them on a scratch
database: every run writes bench-prefixed users and voces.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var benchFollowCmd = &cobra.Command{
	Use:   "follow",
	Short: "Fan-in follow latency and follower repair",
	Long: `Creates one celebrity and N followers, has every follower follow the
celebrity from CONC goroutines, then reports follow latency percentiles, how
many follower entries landed on the celebrity, and how long the reconciler
took to repair the rest.`,
	Args: cobra.NoArgs,
	RunE: withStorage(func(ctx context.Context, out io.Writer, _ *config.Config, st *storage) error {
		return runFollowBench(ctx, out, st.docs)
	}),
}

var benchMirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Profile read-through latency, cold and warm, on the configured mirror driver",
	Args:  cobra.NoArgs,
	RunE: withStorage(func(ctx context.Context, out io.Writer, cfg *config.Config, st *storage) error {
		return runMirrorBench(ctx, out, cfg, st)
	}),
}

var benchFeedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Feed composition latency for a viewer following a subset of authors",
	Args:  cobra.NoArgs,
	RunE: withStorage(func(ctx context.Context, out io.Writer, _ *config.Config, st *storage) error {
		return runFeedBench(ctx, out, st.docs)
	}),
}

func init() {
	benchFollowCmd.Flags().IntVarP(&benchOpts.followers, "followers", "n", 1000, "number of followers")
	benchFollowCmd.Flags().IntVar(&benchOpts.concurrency, "conc", 16, "concurrent followers")
	benchFollowCmd.Flags().IntVar(&benchOpts.page, "page", 50, "page size for the follower list query")
	benchFollowCmd.Flags().IntVar(&benchOpts.workers, "workers", 1, "reconciler workers; more than one races on the celebrity document")

	benchMirrorCmd.Flags().IntVar(&benchOpts.profiles, "profiles", 500, "profiles in the working set")
	benchMirrorCmd.Flags().IntVar(&benchOpts.mirrorReads, "reads", 5000, "random reads after the cold pass")

	benchFeedCmd.Flags().IntVar(&benchOpts.authors, "authors", 50, "authors publishing voces")
	benchFeedCmd.Flags().IntVar(&benchOpts.voces, "voces", 2000, "voces to publish")
	benchFeedCmd.Flags().IntVar(&benchOpts.following, "following", 10, "authors the viewer follows")
	benchFeedCmd.Flags().IntVar(&benchOpts.feedReads, "reads", 200, "feed compositions to time")

	benchCmd.AddCommand(benchFollowCmd, benchMirrorCmd, benchFeedCmd)
	rootCmd.AddCommand(benchCmd)
}

// withStorage loads config and storage around a benchmark body.
func withStorage(fn func(context.Context, io.Writer, *config.Config, *storage) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		st, err := openStorage(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		return fn(cmd.Context(), cmd.OutOrStdout(), cfg, st)
	}
}

func runFollowBench(ctx context.Context, out io.Writer, docs repository.DocumentRepository) error {
	n, conc := benchOpts.followers, benchOpts.concurrency
	if n <= 0 {
		return fmt.Errorf("--followers must be positive")
	}
	if conc <= 0 || conc > n {
		conc = n
	}

	run := time.Now().UnixNano()
	celeb := model.NewDefaultUser(fmt.Sprintf("benchceleb%d", run), fmt.Sprintf("celeb%d@bench.local", run))
	if err := docs.Set(ctx, model.CollectionUsers, celeb.ID, celeb); err != nil {
		return err
	}
	users := make([]*model.User, n)
	for i := range users {
		u := model.NewDefaultUser(fmt.Sprintf("bench%dx%d", run, i), fmt.Sprintf("u%d-%d@bench.local", run, i))
		if err := docs.Set(ctx, model.CollectionUsers, u.ID, u); err != nil {
			return err
		}
		users[i] = u
	}

	graph := social.NewGraph(docs, nil)
	m := mirror.NewMemory(time.Minute, n+1)

	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	lat := make([]time.Duration, n)
	var failed int
	var mu sync.Mutex
	var wg sync.WaitGroup
	t0 := time.Now()
	for w := 0; w < conc; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				st := time.Now()
				_, err := graph.Follow(ctx, m, users[i], celeb.ID)
				lat[i] = time.Since(st)
				if err != nil {
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	followDur := time.Since(t0)

	var landed model.User
	if err := docs.Get(ctx, model.CollectionUsers, celeb.ID, &landed); err != nil {
		return err
	}

	q0 := time.Now()
	if _, err := graph.Followers(ctx, celeb.ID, 1, benchOpts.page); err != nil {
		return err
	}
	queryDur := time.Since(q0)

	// concurrent read-modify-write on the celebrity drops entries; repair them
	rec := social.NewReconciler(docs, n)
	stopRec := rec.Start(benchOpts.workers)
	missing := 0
	for _, u := range users {
		if !landed.HasFollower(u.ID) {
			rec.Enqueue(u.ID, celeb.ID)
			missing++
		}
	}
	r0 := time.Now()
	if err := stopRec(ctx); err != nil {
		return err
	}
	repairDur := time.Since(r0)

	var repaired model.User
	if err := docs.Get(ctx, model.CollectionUsers, celeb.ID, &repaired); err != nil {
		return err
	}

	fmt.Fprintf(out, "N=%d, CONC=%d, PAGE=%d\n", n, conc, benchOpts.page)
	fmt.Fprintf(out, "Follow latency total: %v, per op: %v, p50: %v, p95: %v, p99: %v, failed: %d\n",
		followDur, followDur/time.Duration(n), percentile(lat, 0.50), percentile(lat, 0.95), percentile(lat, 0.99), failed)
	fmt.Fprintf(out, "Followers landed: %d/%d\n", len(landed.Followers), n)
	fmt.Fprintf(out, "Query followers(%d) latency: %v\n", benchOpts.page, queryDur)
	fmt.Fprintf(out, "Repair: queued=%d, applied=%d, failed=%d, drain=%v, followers now %d/%d\n",
		missing, rec.Applied(), rec.Failed(), repairDur, len(repaired.Followers), n)
	return nil
}

func runMirrorBench(ctx context.Context, out io.Writer, cfg *config.Config, st *storage) error {
	n := benchOpts.profiles
	if n <= 0 {
		return fmt.Errorf("--profiles must be positive")
	}
	run := time.Now().UnixNano()
	ids := make([]string, n)
	for i := range ids {
		u := model.NewDefaultUser(fmt.Sprintf("benchp%dx%d", run, i), fmt.Sprintf("p%d-%d@bench.local", run, i))
		if err := st.docs.Set(ctx, model.CollectionUsers, u.ID, u); err != nil {
			return err
		}
		ids[i] = u.ID
	}

	m, err := mirror.New(cfg.Mirror, st.redis, fmt.Sprintf("bench%d", run))
	if err != nil {
		return err
	}
	defer m.Clear(ctx)

	read := func(id string) (time.Duration, error) {
		t := time.Now()
		_, err := mirror.ReadThrough(ctx, m, st.docs, id)
		return time.Since(t), err
	}

	cold := make([]time.Duration, 0, n)
	for _, id := range ids {
		d, err := read(id)
		if err != nil {
			return err
		}
		cold = append(cold, d)
	}
	coldStats := m.Stats()

	rng := rand.New(rand.NewSource(run))
	warm := make([]time.Duration, 0, benchOpts.mirrorReads)
	for i := 0; i < benchOpts.mirrorReads; i++ {
		d, err := read(ids[rng.Intn(n)])
		if err != nil {
			return err
		}
		warm = append(warm, d)
	}
	stats := m.Stats()

	fmt.Fprintf(out, "driver=%s, profiles=%d, reads=%d, ttl=%v, max_size=%d\n",
		cfg.Mirror.Driver, n, benchOpts.mirrorReads, cfg.Mirror.TTL, cfg.Mirror.MaxSize)
	fmt.Fprintf(out, "Cold pass: p50: %v, p95: %v, p99: %v, misses: %d\n",
		percentile(cold, 0.50), percentile(cold, 0.95), percentile(cold, 0.99), coldStats.Misses)
	fmt.Fprintf(out, "Warm reads: p50: %v, p95: %v, p99: %v, hits: %d, misses: %d, evictions: %d, size: %d\n",
		percentile(warm, 0.50), percentile(warm, 0.95), percentile(warm, 0.99),
		stats.Hits-coldStats.Hits, stats.Misses-coldStats.Misses, stats.Evictions, stats.Size)
	return nil
}

func runFeedBench(ctx context.Context, out io.Writer, docs repository.DocumentRepository) error {
	na, nv := benchOpts.authors, benchOpts.voces
	if na <= 0 || nv <= 0 {
		return fmt.Errorf("--authors and --voces must be positive")
	}
	run := time.Now().UnixNano()
	authors := make([]*model.User, na)
	for i := range authors {
		u := model.NewDefaultUser(fmt.Sprintf("bencha%dx%d", run, i), fmt.Sprintf("a%d-%d@bench.local", run, i))
		u.Name = fmt.Sprintf("Author %d", i)
		if err := docs.Set(ctx, model.CollectionUsers, u.ID, u); err != nil {
			return err
		}
		authors[i] = u
	}

	svc := feed.NewService(docs)
	p0 := time.Now()
	for i := 0; i < nv; i++ {
		if _, err := svc.Publish(ctx, authors[i%na], "https://cdn.bench.local/voz.webm", fmt.Sprintf("voz %d", i)); err != nil {
			return err
		}
	}
	publishDur := time.Since(p0)

	viewer := model.NewDefaultUser(fmt.Sprintf("benchv%d", run), fmt.Sprintf("v%d@bench.local", run))
	for i := 0; i < benchOpts.following && i < na; i++ {
		viewer.Following = append(viewer.Following, authors[i].ID)
	}

	lat := make([]time.Duration, 0, benchOpts.feedReads)
	size := 0
	for i := 0; i < benchOpts.feedReads; i++ {
		t := time.Now()
		size = len(svc.Feed(viewer))
		lat = append(lat, time.Since(t))
	}

	fmt.Fprintf(out, "authors=%d, voces=%d, following=%d, reads=%d\n", na, nv, len(viewer.Following), benchOpts.feedReads)
	fmt.Fprintf(out, "Publish total: %v, per op: %v\n", publishDur, publishDur/time.Duration(nv))
	fmt.Fprintf(out, "Feed(%d items) p50: %v, p95: %v, p99: %v\n",
		size, percentile(lat, 0.50), percentile(lat, 0.95), percentile(lat, 0.99))
	return nil
}

func percentile(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}
