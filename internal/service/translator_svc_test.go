package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// ==================== 测试辅助 ====================

// fakeTM 内存版翻译记忆
type fakeTM struct {
	mu      sync.Mutex
	entries map[string]string
	stores  int
}

func newFakeTM() *fakeTM {
	return &fakeTM{entries: map[string]string{}}
}

func tmKey(source, from, to string) string {
	return source + "|" + from + "|" + to
}

func (f *fakeTM) Lookup(ctx context.Context, sourceText, sourceLang, targetLang string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[tmKey(sourceText, sourceLang, targetLang)], nil
}

func (f *fakeTM) Store(ctx context.Context, sourceText, sourceLang, targetText, targetLang string) error {
	if sourceText == "" || targetText == "" {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := tmKey(sourceText, sourceLang, targetLang)
	// 先写入的条目保持权威
	if _, ok := f.entries[key]; !ok {
		f.entries[key] = targetText
		f.stores++
	}
	return nil
}

func (f *fakeTM) seed(source, from, target, to string) {
	f.entries[tmKey(source, from, to)] = target
}

// translatorServer 模拟翻译服务
// 把每条文本译为大写；maxBatch > 0 时超限批次返回 400050 拒绝
type translatorServer struct {
	mu       sync.Mutex
	calls    int
	rejected int
	batches  [][]string
	maxBatch int
}

func (s *translatorServer) handler(w http.ResponseWriter, r *http.Request) {
	var body []struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	texts := make([]string, len(body))
	for i, item := range body {
		texts[i] = item.Text
	}

	s.mu.Lock()
	s.calls++
	s.batches = append(s.batches, texts)
	reject := s.maxBatch > 0 && len(texts) > s.maxBatch
	if reject {
		s.rejected++
	}
	s.mu.Unlock()

	if reject {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400050,"message":"The input request contains too many elements."}}`)
		return
	}

	to := r.URL.Query().Get("to")
	out := make([]map[string]interface{}, len(texts))
	for i, t := range texts {
		out[i] = map[string]interface{}{
			"translations": []map[string]string{
				{"text": strings.ToUpper(t), "to": to},
			},
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func newTestTranslator(t *testing.T, srv *translatorServer, tm *fakeTM) (*TranslatorService, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(srv.handler))
	t.Cleanup(ts.Close)

	svc := NewTranslatorService(&TranslatorConfig{
		Key:      "test-key",
		Region:   "test-region",
		Endpoint: ts.URL,
	}, tm, zap.NewNop().Sugar())
	return svc, ts
}

// ==================== 单条路径 ====================

func TestTranslate_MemoryHit(t *testing.T) {
	tm := newFakeTM()
	tm.seed("merhaba", "tr", "hello", "en")
	srv := &translatorServer{}
	svc, _ := newTestTranslator(t, srv, tm)

	got, err := svc.Translate(context.Background(), "merhaba", "tr", "en")
	if err != nil {
		t.Fatalf("翻译失败: %v", err)
	}
	if got != "hello" {
		t.Errorf("result = %s, want hello", got)
	}
	if srv.calls != 0 {
		t.Errorf("calls = %d, want 0 (记忆命中不应出网)", srv.calls)
	}
}

func TestTranslate_StoreOnMiss(t *testing.T) {
	tm := newFakeTM()
	srv := &translatorServer{}
	svc, _ := newTestTranslator(t, srv, tm)

	got, err := svc.Translate(context.Background(), "merhaba", "tr", "en")
	if err != nil {
		t.Fatalf("翻译失败: %v", err)
	}
	if got != "MERHABA" {
		t.Errorf("result = %s, want MERHABA", got)
	}
	if tm.stores != 1 {
		t.Errorf("stores = %d, want 1", tm.stores)
	}

	// 第二次应命中记忆，不再出网
	if _, err := svc.Translate(context.Background(), "merhaba", "tr", "en"); err != nil {
		t.Fatalf("二次翻译失败: %v", err)
	}
	if srv.calls != 1 {
		t.Errorf("calls = %d, want 1", srv.calls)
	}
}

// ==================== 批量路径 ====================

func TestTranslateList_BlankPassthrough(t *testing.T) {
	tm := newFakeTM()
	srv := &translatorServer{}
	svc, _ := newTestTranslator(t, srv, tm)

	out, err := svc.TranslateList(context.Background(), []string{"", "hello", "  "}, "en", "tr")
	if err != nil {
		t.Fatalf("批量翻译失败: %v", err)
	}

	want := []string{"", "HELLO", "  "}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %q, want %q", i, out[i], want[i])
		}
	}
	if len(srv.batches) != 1 || len(srv.batches[0]) != 1 || srv.batches[0][0] != "hello" {
		t.Errorf("提交给服务的批次 = %v, want [[hello]] (空白条目不出网)", srv.batches)
	}
}

func TestTranslateList_CacheMerge(t *testing.T) {
	tm := newFakeTM()
	tm.seed("b", "tr", "cached-b", "en")
	srv := &translatorServer{}
	svc, _ := newTestTranslator(t, srv, tm)

	out, err := svc.TranslateList(context.Background(), []string{"a", "b", "c"}, "tr", "en")
	if err != nil {
		t.Fatalf("批量翻译失败: %v", err)
	}

	want := []string{"A", "cached-b", "C"}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %q, want %q", i, out[i], want[i])
		}
	}
	// 命中的条目不进服务批次
	if len(srv.batches) != 1 || len(srv.batches[0]) != 2 {
		t.Fatalf("batches = %v, want [[a c]]", srv.batches)
	}
}

func TestTranslateList_AllCached(t *testing.T) {
	tm := newFakeTM()
	tm.seed("a", "tr", "x", "en")
	tm.seed("b", "tr", "y", "en")
	srv := &translatorServer{}
	svc, _ := newTestTranslator(t, srv, tm)

	out, err := svc.TranslateList(context.Background(), []string{"a", "b"}, "tr", "en")
	if err != nil {
		t.Fatalf("批量翻译失败: %v", err)
	}
	if out[0] != "x" || out[1] != "y" {
		t.Errorf("out = %v, want [x y]", out)
	}
	if srv.calls != 0 {
		t.Errorf("calls = %d, want 0", srv.calls)
	}
}

func TestTranslateList_ProviderError(t *testing.T) {
	tm := newFakeTM()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":401000,"message":"invalid key"}}`)
	}))
	defer ts.Close()

	svc := NewTranslatorService(&TranslatorConfig{
		Key:      "bad-key",
		Endpoint: ts.URL,
	}, tm, zap.NewNop().Sugar())

	_, err := svc.TranslateList(context.Background(), []string{"hello"}, "en", "tr")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
	if pe.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", pe.StatusCode)
	}
	// 失败的调用不写记忆
	if tm.stores != 0 {
		t.Errorf("stores = %d, want 0", tm.stores)
	}
}

func TestTranslateList_BatchBisect(t *testing.T) {
	tm := newFakeTM()
	srv := &translatorServer{maxBatch: 2}
	svc, _ := newTestTranslator(t, srv, tm)

	texts := []string{"a", "b", "c", "d", "e"}
	out, err := svc.TranslateList(context.Background(), texts, "tr", "en")
	if err != nil {
		t.Fatalf("批量翻译失败: %v", err)
	}

	// 5 -> 拒绝 -> [2 | 3]，3 -> 拒绝 -> [1 | 2]
	want := []string{"A", "B", "C", "D", "E"}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %q, want %q", i, out[i], want[i])
		}
	}
	if srv.rejected != 2 {
		t.Errorf("rejected = %d, want 2", srv.rejected)
	}
	if tm.stores != 5 {
		t.Errorf("stores = %d, want 5", tm.stores)
	}
}

func TestTranslateList_SingleTooLargeIsHardError(t *testing.T) {
	tm := newFakeTM()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400050,"message":"too many elements"}}`)
	}))
	defer ts.Close()

	svc := NewTranslatorService(&TranslatorConfig{
		Key:      "test-key",
		Endpoint: ts.URL,
	}, tm, zap.NewNop().Sugar())

	// 缩到单条仍被拒：二分无法继续，错误上抛
	_, err := svc.TranslateList(context.Background(), []string{"x"}, "tr", "en")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
	if !pe.BatchTooLarge() {
		t.Errorf("BatchTooLarge() = false, want true")
	}
}
