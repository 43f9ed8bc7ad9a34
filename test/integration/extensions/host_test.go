// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

//go:build integration

package extensions_test

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/stratanode/strata/internal/cluster"
	"github.com/stratanode/strata/internal/extensions"
	"github.com/stratanode/strata/internal/extensions/handlers"
	"github.com/stratanode/strata/internal/indices"
	"github.com/stratanode/strata/internal/transport/grpctransport"
	"github.com/stratanode/strata/pkg/errutil"
	"github.com/stratanode/strata/pkg/extensionsdk"
)

const callTimeout = 500 * time.Millisecond

// node is a host wired the way the strata node command wires it.
type node struct {
	transport *grpctransport.Transport
	svc       *extensions.Service
	handlers  *handlers.Set
	cluster   *cluster.Static
	indices   *indices.Service
}

func startNode(ctx context.Context, descriptors ...extensions.Descriptor) *node {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())

	local := extensions.NodeDescriptor{ID: "node-1", Name: "node-1", Address: lis.Addr().String()}
	tr := grpctransport.New(grpctransport.Config{Local: local})
	go func() { _ = tr.Serve(lis) }()
	DeferCleanup(tr.Close)

	modules := indices.NewService()
	static := cluster.NewStatic("it-cluster", local, extensions.NodeSettings{"search.max_buckets": "100"},
		cluster.WithModules(modules))

	svc, err := extensions.NewService(extensions.ServiceConfig{
		Transport:   tr,
		Cluster:     static,
		Source:      extensions.StaticSource(descriptors),
		Environment: extensions.NodeSettings{"node.name": "node-1"},
		Timeout:     callTimeout,
	})
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(svc.Stop)

	set := handlers.New(svc.Registry(), svc.Caller())
	Expect(set.Register(svc.Table())).To(Succeed())
	static.OnSettingsUpdate(func(key, value string) {
		set.Consumers.Notify(ctx, key, value)
	})
	modules.AddObserver(svc)

	return &node{transport: tr, svc: svc, handlers: set, cluster: static, indices: modules}
}

// runExtension serves an SDK extension on lis until the test ends.
func runExtension(cfg extensionsdk.Config, lis net.Listener) *extensionsdk.Extension {
	ext, err := extensionsdk.New(cfg)
	Expect(err).NotTo(HaveOccurred())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ext.Run(ctx, lis) }()
	DeferCleanup(func() {
		cancel()
		<-done
	})
	return ext
}

func listen() (net.Listener, int) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	return lis, lis.Addr().(*net.TCPAddr).Port
}

// silent accepts connections and never answers.
func silent() int {
	lis, port := listen()
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := lis.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	DeferCleanup(func() {
		_ = lis.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return port
}

// closedPort returns a port nothing listens on.
func closedPort() int {
	lis, port := listen()
	Expect(lis.Close()).To(Succeed())
	return port
}

func descriptor(id string, port int) extensions.Descriptor {
	return extensions.Descriptor{
		Name:        id + "-extension",
		UniqueID:    id,
		HostAddress: "127.0.0.1",
		Port:        strconv.Itoa(port),
		NodeVersion: "3.0.0",
	}
}

func state(n *node, id string) extensions.State {
	rec, ok := n.svc.Registry().Lookup(id)
	Expect(ok).To(BeTrue())
	return rec.State()
}

var _ = Describe("Extension host", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("initializing a mixed set of extensions", func() {
		It("initializes the healthy ones and fails the rest independently", func() {
			healthyLis, healthyPort := listen()
			runExtension(extensionsdk.Config{UniqueID: "healthy", Name: "healthy-extension"}, healthyLis)

			n := startNode(ctx,
				descriptor("healthy", healthyPort),
				descriptor("silent", silent()),
				descriptor("refused", closedPort()),
			)

			start := time.Now()
			report, err := n.svc.Start(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(time.Since(start)).To(BeNumerically("<", 3*callTimeout),
				"handshakes run in parallel, each bounded by the call timeout")
			Expect(report.Initialized).To(ConsistOf("healthy"))
			Expect(report.Failed).To(ConsistOf("silent", "refused"))
			Expect(n.svc.Ready()).To(BeTrue())

			rec, _ := n.svc.Registry().Lookup("silent")
			Expect(errutil.HasCode(rec.Cause(), extensions.CodeInitializationTimeout)).To(BeTrue())
			rec, _ = n.svc.Registry().Lookup("refused")
			Expect(errutil.HasCode(rec.Cause(), extensions.CodeTransportFailure)).To(BeTrue())
		})

		It("re-initializes a failed extension once it comes up", func() {
			port := closedPort()
			n := startNode(ctx, descriptor("late", port))

			report, err := n.svc.Start(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Failed).To(ConsistOf("late"))

			lis, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
			Expect(err).NotTo(HaveOccurred())
			runExtension(extensionsdk.Config{UniqueID: "late", Name: "late-extension"}, lis)

			Eventually(func() error {
				return n.svc.Reinitialize(ctx, "late")
			}).WithTimeout(5 * time.Second).WithPolling(100 * time.Millisecond).Should(Succeed())
			Expect(state(n, "late")).To(Equal(extensions.StateInitialized))
		})
	})

	Describe("module notifications", func() {
		It("reaches initialized extensions only and honors removal interest", func() {
			var (
				mu       sync.Mutex
				attached []string
				removed  []string
			)
			lis, port := listen()
			runExtension(extensionsdk.Config{
				UniqueID: "watcher",
				Name:     "watcher-extension",
				OnModuleAttached: func(_ context.Context, m extensions.ModuleDescriptor) bool {
					mu.Lock()
					defer mu.Unlock()
					attached = append(attached, m.Name)
					return true
				},
				OnModuleRemoval: func(_ context.Context, m extensions.ModuleDescriptor) {
					mu.Lock()
					defer mu.Unlock()
					removed = append(removed, m.Name)
				},
			}, lis)

			n := startNode(ctx, descriptor("watcher", port), descriptor("silent", silent()))
			_, err := n.svc.Start(ctx)
			Expect(err).NotTo(HaveOccurred())

			idx, err := n.indices.Create(ctx, "logs-2026")
			Expect(err).NotTo(HaveOccurred())
			Expect(n.svc.Forwarder().InterestedIn(idx)).To(ConsistOf("watcher"))
			Expect(n.cluster.State().Modules).To(ContainElement("logs-2026"))

			Expect(n.indices.Delete(ctx, "logs-2026")).To(Succeed())

			mu.Lock()
			defer mu.Unlock()
			Expect(attached).To(Equal([]string{"logs-2026"}))
			Expect(removed).To(Equal([]string{"logs-2026"}))
		})
	})

	Describe("extension callbacks", func() {
		var (
			n        *node
			provider *extensionsdk.Extension
			consumer *extensionsdk.Extension
			updates  chan string
		)

		BeforeEach(func() {
			updates = make(chan string, 4)

			pLis, pPort := listen()
			provider = runExtension(extensionsdk.Config{
				UniqueID: "provider",
				Name:     "provider-extension",
				TransportActions: map[string]extensionsdk.ActionHandler{
					"provider:upper": func(_ context.Context, req []byte) ([]byte, error) {
						return bytes.ToUpper(req), nil
					},
				},
			}, pLis)

			cLis, cPort := listen()
			consumer = runExtension(extensionsdk.Config{
				UniqueID: "consumer",
				Name:     "consumer-extension",
				OnSettingsUpdate: func(_ context.Context, key, value string) {
					updates <- key + "=" + value
				},
			}, cLis)

			n = startNode(ctx, descriptor("provider", pPort), descriptor("consumer", cPort))
			report, err := n.svc.Start(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Initialized).To(ConsistOf("provider", "consumer"))
		})

		host := func(ext *extensionsdk.Extension) *extensionsdk.Host {
			Eventually(ext.Initialized()).Should(BeClosed())
			h, err := ext.Host()
			Expect(err).NotTo(HaveOccurred())
			return h
		}

		It("serves cluster built-ins", func() {
			resp, err := host(consumer).ClusterState(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.ClusterName).To(Equal("it-cluster"))
			Expect(resp.State.LocalNodeID).To(Equal("node-1"))
		})

		It("forwards transport actions between extensions", func() {
			Expect(host(provider).RegisterTransportActions(ctx, provider.TransportActionNames()...)).To(Succeed())

			reply, err := host(consumer).SendTransportAction(ctx, "provider:upper", []byte("geo"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(reply)).To(Equal("GEO"))
		})

		It("rejects a transport action nobody registered", func() {
			_, err := host(consumer).SendTransportAction(ctx, "nobody:home", nil)
			Expect(err).To(HaveOccurred())
		})

		It("pushes subscribed setting updates", func() {
			Expect(host(consumer).AddSettingsUpdateConsumer(ctx, "search.max_buckets")).To(Succeed())

			n.cluster.UpdateSetting("search.max_buckets", "250")
			Eventually(updates).Should(Receive(Equal("search.max_buckets=250")))

			n.cluster.UpdateSetting("search.unrelated", "x")
			Consistently(updates, 200*time.Millisecond).ShouldNot(Receive())
		})
	})
})
