package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

// Options controls a single Load call.
type Options struct {
	// BaseURI biases resolution of relative buffer and image URIs.
	BaseURI string
	// Index is validated against the document's scene list; an index out
	// of range fails the load. Load does not otherwise use it: Content
	// always carries every scene.
	Index *int
	// Fetcher retrieves external resources. Defaults to HTTPFetcher.
	Fetcher Fetcher
	// OnProgress is invoked on the loader goroutine after every fetch
	// completion with the number of settled and total fetches.
	OnProgress func(done, total int)
}

type accessorKey struct {
	index int
	usage Usage
}

// loadContext is the single owning coordinator of one load. All entity
// mutation happens on the goroutine running Load; fetch goroutines only
// deliver completion closures through the results channel.
type loadContext struct {
	ctx     context.Context
	doc     *gltf.Document
	opts    Options
	fetcher Fetcher

	pending  int
	started  int
	finished int
	bodyDone bool
	failed   bool
	firstErr error

	results chan func()

	bufferEntries map[int]*bufferEntry
	imageEntries  map[int]*imageEntry

	buffers   map[int]*Buffer
	views     map[int]*BufferView
	accessors map[accessorKey]*Accessor
	images    map[int]*Image
	textures  map[int]*Texture
	samplers  map[int]*Sampler
	materials map[int]*Material
	meshes    map[int]*Mesh
	nodes     map[int]*Node
	nodeState map[int]int

	scenes       []*Scene
	defaultScene int
}

var reVersion = regexp.MustCompile(`^(\d+)\.(\d+)`)

// Load parses a plain-JSON glTF 2.0 document, fetches its external buffers
// and images, and runs the assembly pipeline. It returns exactly once, with
// either a fully resolved Content or the first-seen failure. Once the
// document body is built, all outstanding fetches are drained before either
// outcome; an error while building the body returns at once and the fetches
// already started are drained in the background.
func Load(ctx context.Context, data []byte, opts *Options) (*Content, error) {
	doc := new(gltf.Document)
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errors.Wrapf(ErrMalformedAsset, "parse document: %v", err)
	}
	if err := checkVersion(doc.Asset.Version); err != nil {
		return nil, err
	}

	lc := &loadContext{
		ctx:           ctx,
		doc:           doc,
		fetcher:       &HTTPFetcher{},
		results:       make(chan func()),
		bufferEntries: make(map[int]*bufferEntry),
		imageEntries:  make(map[int]*imageEntry),
		buffers:       make(map[int]*Buffer),
		views:         make(map[int]*BufferView),
		accessors:     make(map[accessorKey]*Accessor),
		images:        make(map[int]*Image),
		textures:      make(map[int]*Texture),
		samplers:      make(map[int]*Sampler),
		materials:     make(map[int]*Material),
		meshes:        make(map[int]*Mesh),
		nodes:         make(map[int]*Node),
		nodeState:     make(map[int]int),
		defaultScene:  -1,
	}
	if opts != nil {
		lc.opts = *opts
	}
	if lc.opts.Fetcher != nil {
		lc.fetcher = lc.opts.Fetcher
	}

	if err := lc.buildBody(); err != nil {
		lc.abandon()
		return nil, err
	}
	lc.bodyDone = true

	for lc.pending > 0 {
		select {
		case apply := <-lc.results:
			apply()
		case <-ctx.Done():
			lc.fail(errors.Wrapf(ErrFetchFailed, "load cancelled: %v", ctx.Err()))
			apply := <-lc.results
			apply()
		}
	}

	return lc.settle()
}

func checkVersion(version string) error {
	m := reVersion.FindStringSubmatch(version)
	if m == nil {
		return errors.Wrapf(ErrVersionUnsupported, "asset version %q", version)
	}
	major, err := strconv.Atoi(m[1])
	if err != nil || major < 2 {
		return errors.Wrapf(ErrVersionUnsupported, "asset version %q", version)
	}
	return nil
}

// buildBody constructs the entity tree. Entity construction registers
// accessors and texture infos with their entries and kicks off fetches.
func (lc *loadContext) buildBody() error {
	if lc.opts.Index != nil {
		if i := *lc.opts.Index; i < 0 || i >= len(lc.doc.Scenes) {
			return errors.Wrapf(ErrSceneIndexOutOfRange, "index %d, %d scenes", i, len(lc.doc.Scenes))
		}
	}
	if lc.doc.Scene != nil {
		if i := int(*lc.doc.Scene); i < 0 || i >= len(lc.doc.Scenes) {
			return errors.Wrapf(ErrMalformedAsset, "default scene %d out of range", i)
		}
		lc.defaultScene = int(*lc.doc.Scene)
	}
	return lc.buildScenes()
}

// settle runs the post-load pipeline once every fetch has reported:
// endian rewrite, then split-and-rebuild, then image dedup, in buffer and
// image declaration order.
func (lc *loadContext) settle() (*Content, error) {
	if lc.failed {
		return nil, lc.firstErr
	}

	bufKeys := make([]int, 0, len(lc.bufferEntries))
	for i := range lc.bufferEntries {
		bufKeys = append(bufKeys, i)
	}
	sort.Ints(bufKeys)
	imgKeys := make([]int, 0, len(lc.imageEntries))
	for i := range lc.imageEntries {
		imgKeys = append(imgKeys, i)
	}
	sort.Ints(imgKeys)

	if !hostLittleEndian {
		for _, i := range bufKeys {
			if err := lc.bufferEntries[i].rewriteEndian(); err != nil {
				return nil, err
			}
		}
	}
	for _, i := range imgKeys {
		if err := lc.imageEntries[i].snapshotViewBytes(); err != nil {
			return nil, err
		}
	}
	for _, i := range bufKeys {
		if err := lc.bufferEntries[i].splitAndRebuild(); err != nil {
			return nil, err
		}
	}
	for _, i := range imgKeys {
		e := lc.imageEntries[i]
		if err := e.decodeViewImage(); err != nil {
			return nil, err
		}
		e.dedupeTextures()
	}

	return &Content{Scenes: lc.scenes, DefaultSceneIndex: lc.defaultScene}, nil
}

func (lc *loadContext) fail(err error) {
	if !lc.failed {
		lc.failed = true
		lc.firstErr = err
	}
}

func (lc *loadContext) finishOne() {
	lc.pending--
	lc.finished++
	if lc.opts.OnProgress != nil {
		lc.opts.OnProgress(lc.finished, lc.started)
	}
}

// abandon drains outstanding fetch completions after a body-parse failure
// so their goroutines do not leak.
func (lc *loadContext) abandon() {
	n := lc.pending
	go func() {
		for i := 0; i < n; i++ {
			<-lc.results
		}
	}()
}

// fetchBuffer counts the fetch synchronously and resolves it on a worker
// goroutine; the completion mutates the entry back on the loader goroutine.
func (lc *loadContext) fetchBuffer(b *Buffer, uri string) {
	lc.pending++
	lc.started++
	url := ResolveURI(uri, lc.opts.BaseURI)
	go func() {
		data, err := lc.fetchBytes(url)
		lc.results <- func() {
			lc.finishOne()
			if err != nil {
				lc.fail(errors.Wrapf(ErrFetchFailed, "buffer %d from %q: %v", b.Index, url, err))
				return
			}
			if len(data) < b.ByteLength {
				lc.fail(errors.Wrapf(ErrMalformedAsset, "buffer %d: fetched %d bytes, declared %d",
					b.Index, len(data), b.ByteLength))
				return
			}
			b.Data = data[:b.ByteLength]
		}
	}()
}

// fetchImage fetches and decodes on the worker goroutine; only the store
// happens on the loader goroutine.
func (lc *loadContext) fetchImage(img *Image, uri string) {
	lc.pending++
	lc.started++
	url := ResolveURI(uri, lc.opts.BaseURI)
	go func() {
		data, fetchErr := lc.fetchBytes(url)
		var decoded image.Image
		var decodeErr error
		if fetchErr == nil {
			decoded, _, decodeErr = image.Decode(bytes.NewReader(data))
		}
		lc.results <- func() {
			lc.finishOne()
			switch {
			case fetchErr != nil:
				lc.fail(errors.Wrapf(ErrFetchFailed, "image %d from %q: %v", img.Index, url, fetchErr))
			case decodeErr != nil:
				lc.fail(errors.Wrapf(ErrDecodeFailed, "image %d from %q: %v", img.Index, url, decodeErr))
			default:
				img.Decoded = decoded
			}
		}
	}()
}

func (lc *loadContext) fetchBytes(url string) ([]byte, error) {
	if isDataURI(url) {
		return decodeDataURI(url)
	}
	return lc.fetcher.Fetch(lc.ctx, url)
}
