package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"derzan_scraper_v1/internal/model"
)

// ==================== 测试辅助 ====================

// fakeProductTranslator 假商品翻译器
type fakeProductTranslator struct {
	mu        sync.Mutex
	calls     int
	fromLangs map[string]bool
	failCodes map[string]bool
}

func newFakeProductTranslator() *fakeProductTranslator {
	return &fakeProductTranslator{
		fromLangs: map[string]bool{},
		failCodes: map[string]bool{},
	}
}

func (f *fakeProductTranslator) TranslateProduct(ctx context.Context, p *model.Product, toLang, fromLang string) (*model.Translation, error) {
	f.mu.Lock()
	f.calls++
	f.fromLangs[fromLang] = true
	fail := f.failCodes[p.Code]
	f.mu.Unlock()

	if fail {
		return nil, errors.New("翻译服务错误")
	}
	return &model.Translation{
		Name:        toLang + ": " + p.Name,
		Description: toLang + ": " + p.Description,
	}, nil
}

type localizeHarness struct {
	vendors    *memVendorRepo
	products   *memProductRepo
	translator *fakeProductTranslator
	svc        *LocalizeService
}

func newLocalizeHarness() *localizeHarness {
	h := &localizeHarness{
		vendors:    &memVendorRepo{},
		products:   &memProductRepo{},
		translator: newFakeProductTranslator(),
	}
	h.svc = NewLocalizeService(h.vendors, h.products, h.translator, zap.NewNop().Sugar())
	return h
}

func (h *localizeHarness) seed(t *testing.T, codes ...string) *model.Vendor {
	t.Helper()
	vendor, err := h.vendors.GetOrCreate(context.Background(), model.Vendor{Name: "acme", Language: "tr"})
	if err != nil {
		t.Fatalf("建档失败: %v", err)
	}

	var products []model.Product
	for _, code := range codes {
		products = append(products, model.Product{Code: code, Name: "商品 " + code, Description: "<p>açıklama</p>"})
	}
	if _, err := h.products.BulkCreate(context.Background(), vendor.ID, products); err != nil {
		t.Fatalf("铺数据失败: %v", err)
	}
	return vendor
}

// ==================== 本地化运行 ====================

func TestLocalizeRun(t *testing.T) {
	h := newLocalizeHarness()
	vendor := h.seed(t, "A", "B", "C")
	h.translator.failCodes["B"] = true

	report, err := h.svc.Run(context.Background(), "acme", LocalizeOptions{TargetLang: "en", Workers: 2})
	if err != nil {
		t.Fatalf("运行失败: %v", err)
	}

	if report.Submitted != 3 {
		t.Errorf("submitted = %d, want 3", report.Submitted)
	}
	if report.Translated != 2 || report.Failed != 1 {
		t.Errorf("translated/failed = %d/%d, want 2/1", report.Translated, report.Failed)
	}

	// 成功商品写入 translation.en，失败商品不写
	a := h.products.findLocked(vendor.ID, "A")
	if tr, ok := a.Translation["en"]; !ok || tr.Name != "en: 商品 A" {
		t.Errorf("商品 A 的翻译 = %+v", a.Translation)
	}
	b := h.products.findLocked(vendor.ID, "B")
	if _, ok := b.Translation["en"]; ok {
		t.Errorf("失败商品 B 不应写入翻译")
	}
}

func TestLocalizeRun_VendorMissing(t *testing.T) {
	h := newLocalizeHarness()

	if _, err := h.svc.Run(context.Background(), "yok", LocalizeOptions{TargetLang: "en"}); err == nil {
		t.Fatalf("未建档供应商应报错")
	}
}

func TestLocalizeRun_TargetLangRequired(t *testing.T) {
	h := newLocalizeHarness()
	h.seed(t, "A")

	if _, err := h.svc.Run(context.Background(), "acme", LocalizeOptions{}); err == nil {
		t.Fatalf("缺目标语言应报错")
	}
}

func TestLocalizeRun_SourceLangDefault(t *testing.T) {
	h := newLocalizeHarness()
	h.seed(t, "A")

	// 缺省取供应商档案语言
	if _, err := h.svc.Run(context.Background(), "acme", LocalizeOptions{TargetLang: "en"}); err != nil {
		t.Fatalf("运行失败: %v", err)
	}
	if !h.translator.fromLangs["tr"] {
		t.Errorf("fromLangs = %v, want 含 tr", h.translator.fromLangs)
	}

	// 显式指定覆盖档案语言
	if _, err := h.svc.Run(context.Background(), "acme", LocalizeOptions{TargetLang: "ru", SourceLang: "de"}); err != nil {
		t.Fatalf("运行失败: %v", err)
	}
	if !h.translator.fromLangs["de"] {
		t.Errorf("fromLangs = %v, want 含 de", h.translator.fromLangs)
	}
}

func TestLocalizeRun_SkipsTranslated(t *testing.T) {
	h := newLocalizeHarness()
	vendor := h.seed(t, "A", "B")
	h.products.SetTranslation(context.Background(),
		h.products.findLocked(vendor.ID, "A").ID, "en", model.Translation{Name: "done"})

	report, err := h.svc.Run(context.Background(), "acme", LocalizeOptions{TargetLang: "en"})
	if err != nil {
		t.Fatalf("运行失败: %v", err)
	}
	if report.Submitted != 1 {
		t.Errorf("submitted = %d, want 1 (已翻译的跳过)", report.Submitted)
	}

	// 其他语言的翻译不影响本语言筛选
	report, err = h.svc.Run(context.Background(), "acme", LocalizeOptions{TargetLang: "ru"})
	if err != nil {
		t.Fatalf("运行失败: %v", err)
	}
	if report.Submitted != 2 {
		t.Errorf("submitted = %d, want 2", report.Submitted)
	}
}

func TestLocalizeRun_Limit(t *testing.T) {
	h := newLocalizeHarness()
	h.seed(t, "A", "B", "C")

	report, err := h.svc.Run(context.Background(), "acme", LocalizeOptions{TargetLang: "en", Limit: 1})
	if err != nil {
		t.Fatalf("运行失败: %v", err)
	}
	if report.Submitted != 1 {
		t.Errorf("submitted = %d, want 1", report.Submitted)
	}
}
