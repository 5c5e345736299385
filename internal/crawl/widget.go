package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coumap/crawler/internal/browser"
	"github.com/coumap/crawler/internal/core/domain"
)

// Scripts against the widget page. Each runs as a self-contained expression
// and returns a JSON-serializable value; the selectors and globals
// (agreePopup, areaDepth2/3, resultMinsJson, ...) are the widget's own.
const (
	consentScript = `(function() {
		var popup = document.getElementById('agreePopup');
		if (!popup || popup.style.display === 'none') {
			return 'no_popup';
		}
		var checkbox = document.getElementById('chkbox2');
		if (checkbox) {
			checkbox.click();
		}
		setTimeout(function() { chkAgree(); }, 1000);
		return 'agreement_processed';
	})()`

	openFilterScript = `(function() {
		var btn = document.querySelector('a[href="#filterPopup"]');
		if (!btn) {
			return 'filter_button_not_found';
		}
		btn.click();
		return 'filter_opened';
	})()`

	setConditionsScript = `(function() {
		var radius = document.getElementById('radiusRdo2');
		if (radius) {
			radius.checked = true;
			radius.closest('.radio-box').classList.add('checked');
		}
		var location = document.getElementById('locationRdo2');
		if (location) {
			location.click();
			location.checked = true;
			document.querySelectorAll('#locationType .radio-box').forEach(function(box) {
				box.classList.remove('checked');
			});
			location.closest('.radio-box').classList.add('checked');
		}
		setTimeout(function() {
			var areaBtn = document.querySelector('a[data-bs="selBsArea"]');
			if (areaBtn) {
				areaBtn.click();
			}
		}, 1000);
		return 'conditions_set';
	})()`

	reopenAreaScript = `(function() {
		var location = document.getElementById('locationRdo2');
		if (location) {
			location.click();
			location.checked = true;
			document.querySelectorAll('#locationType .radio-box').forEach(function(box) {
				box.classList.remove('checked');
			});
			location.closest('.radio-box').classList.add('checked');
		}
		setTimeout(function() {
			var areaBtn = document.querySelector('a[data-bs="selBsArea"]');
			if (areaBtn) {
				areaBtn.click();
			}
		}, 1000);
		return 'reopened';
	})()`

	provincesScript = `(function() {
		var out = [];
		var sel = document.querySelector('select[data-gub="Area"]');
		if (sel) {
			Array.from(sel.options).forEach(function(opt, i) {
				if (i > 0 && opt.value) {
					out.push({value: opt.value, label: opt.text.trim(), index: i});
				}
			});
		}
		return out;
	})()`

	districtsScript = `(function() {
		var out = [];
		document.querySelectorAll('#areaDepth2 li a').forEach(function(tab, i) {
			var value = tab.getAttribute('data-value');
			var label = tab.textContent.trim();
			if (value && label) {
				out.push({value: value, label: label, index: i});
			}
		});
		return out;
	})()`

	dongsScript = `(function() {
		var out = [];
		document.querySelectorAll('#areaDepth3 li a').forEach(function(tab, i) {
			var label = tab.textContent.trim();
			if (label) {
				out.push({value: '', label: label, index: i});
			}
		});
		return out;
	})()`

	completeSelectionScript = `(function() {
		var btn = document.querySelector('button[onclick="selBs(\'selBsArea\');"]');
		if (!btn) {
			return 'complete_button_not_found';
		}
		btn.click();
		return 'area_selection_completed';
	})()`

	searchScript = `(function() {
		var btn = document.querySelector('button[onclick="doSearch(\'#filterPopup\');"]');
		if (!btn) {
			return 'search_button_not_found';
		}
		btn.click();
		return 'search_executed';
	})()`

	countScript = `(function() {
		var el = document.querySelector('[data-comma="total"]');
		if (!el) {
			return 0;
		}
		return parseInt(el.textContent.trim().replace(/,/g, ''), 10) || 0;
	})()`

	extractScript = `(function() {
		var out = [];
		var seen = {};
		if (typeof resultMinsJson === 'undefined' || !Array.isArray(resultMinsJson)) {
			return out;
		}
		for (var i = 0; i < resultMinsJson.length; i++) {
			var item = resultMinsJson[i];
			if (!item || !item.content) {
				continue;
			}
			var name = item.content.title || '';
			var address = item.content.address || '';
			if (!name || !address) {
				continue;
			}
			var key = name + '|' + address;
			if (seen[key]) {
				continue;
			}
			seen[key] = true;
			out.push({
				type: '소비쿠폰',
				name: name,
				address: address,
				category: item.content.category || '',
				phone: item.content.tel || '',
				distance: item.content.distance || ''
			});
		}
		return out;
	})()`

	reclaimScript = `(function() {
		if (typeof resultMinsJson !== 'undefined' && Array.isArray(resultMinsJson)) {
			resultMinsJson.length = 0;
		}
		if (window.gc) {
			window.gc();
		}
		return 'ok';
	})()`
)

// sliceScriptFmt extracts listings [start, start+count) by index, without
// in-page dedup; cross-slice dedup happens on the Go side.
const sliceScriptFmt = `(function() {
	var out = [];
	if (typeof resultMinsJson === 'undefined' || !Array.isArray(resultMinsJson)) {
		return out;
	}
	var start = %d;
	var end = Math.min(start + %d, resultMinsJson.length);
	for (var i = start; i < end; i++) {
		var item = resultMinsJson[i];
		if (!item || !item.content) {
			continue;
		}
		var name = item.content.title || '';
		var address = item.content.address || '';
		if (!name || !address) {
			continue;
		}
		out.push({
			type: '소비쿠폰',
			name: name,
			address: address,
			category: item.content.category || '',
			phone: item.content.tel || '',
			distance: item.content.distance || ''
		});
	}
	return out;
})()`

const selectProvinceScriptFmt = `(function() {
	var sel = document.querySelector('select[data-gub="Area"]');
	if (!sel) {
		return 'area_select_not_found';
	}
	sel.value = %q;
	if (typeof setArea2 === 'function') {
		setArea2(%q);
	}
	var selected = sel.options[sel.selectedIndex];
	var target = document.querySelector('.js-select_target[pop-name="sel-0000344"]');
	if (target && selected) {
		target.textContent = selected.text;
	}
	return 'province_selected';
})()`

const selectDistrictScriptFmt = `(function() {
	var tab = document.querySelector('#areaDepth2 li a[data-value=%q]');
	if (!tab) {
		return 'district_not_found';
	}
	document.querySelectorAll('#areaDepth2 li').forEach(function(li) {
		li.classList.remove('on');
	});
	tab.closest('li').classList.add('on');
	tab.click();
	if (typeof setArea3 === 'function') {
		setArea3(%q);
	}
	return 'district_selected';
})()`

const selectDongScriptFmt = `(function() {
	var tabs = document.querySelectorAll('#areaDepth3 li');
	if (tabs.length <= %d) {
		return 'dong_selection_failed';
	}
	tabs.forEach(function(li) {
		li.classList.remove('on');
	});
	var target = tabs[%d];
	target.classList.add('on');
	target.querySelector('a').click();
	return 'dong_selected:' + target.querySelector('a').textContent.trim();
})()`

// WidgetConfig configures the widget driver's pacing.
type WidgetConfig struct {
	// EntryURL is the widget page.
	EntryURL string
	// SettlePause is the wait after a UI interaction.
	SettlePause time.Duration
	// ResultPause is the wait for search results to render.
	ResultPause time.Duration
	// SlicePause is the wait between paginated extraction slices.
	SlicePause time.Duration
}

func (c *WidgetConfig) defaults() {
	if c.SettlePause <= 0 {
		c.SettlePause = 2 * time.Second
	}
	if c.ResultPause <= 0 {
		c.ResultPause = 5 * time.Second
	}
	if c.SlicePause <= 0 {
		c.SlicePause = 500 * time.Millisecond
	}
}

// Widget drives the map widget's filter/region UI and listing extraction.
// All session interaction goes through the recoverable executor.
type Widget struct {
	exec *Executor
	cfg  WidgetConfig
	log  *slog.Logger
}

// NewWidget creates a widget driver on top of the executor.
func NewWidget(exec *Executor, cfg WidgetConfig, log *slog.Logger) *Widget {
	cfg.defaults()
	return &Widget{exec: exec, cfg: cfg, log: log}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// runStatus executes a status-returning script and checks the result.
func (w *Widget) runStatus(ctx context.Context, desc, script, want string) error {
	return w.exec.Execute(ctx, desc, func(s browser.Session) error {
		var status string
		if err := s.RunScript(script, &status); err != nil {
			return err
		}
		if status != want {
			return fmt.Errorf("%s: %s", desc, status)
		}
		return nil
	})
}

// OpenSite navigates to the widget, clears the location-consent popup, opens
// the filter popup and sets the search conditions.
func (w *Widget) OpenSite(ctx context.Context) error {
	err := w.exec.Execute(ctx, "open site", func(s browser.Session) error {
		return s.Navigate(w.cfg.EntryURL)
	})
	if err != nil {
		return err
	}
	if err := sleep(ctx, w.cfg.ResultPause); err != nil {
		return err
	}
	if err := w.DismissConsentPopup(ctx); err != nil {
		return err
	}
	if err := w.OpenFilterPopup(ctx); err != nil {
		return err
	}
	return w.SetSearchConditions(ctx)
}

// DismissConsentPopup clears the location-consent popup when present.
func (w *Widget) DismissConsentPopup(ctx context.Context) error {
	var status string
	err := w.exec.Execute(ctx, "dismiss consent popup", func(s browser.Session) error {
		return s.RunScript(consentScript, &status)
	})
	if err != nil {
		return err
	}
	if status == "agreement_processed" {
		w.log.Info("location consent popup dismissed")
		return sleep(ctx, w.cfg.SettlePause)
	}
	w.log.Debug("no consent popup present")
	return nil
}

// OpenFilterPopup opens the search-condition popup.
func (w *Widget) OpenFilterPopup(ctx context.Context) error {
	if err := w.runStatus(ctx, "open filter popup", openFilterScript, "filter_opened"); err != nil {
		return err
	}
	return sleep(ctx, w.cfg.SettlePause)
}

// SetSearchConditions selects the radius and region-based location mode and
// opens the area-selection popup.
func (w *Widget) SetSearchConditions(ctx context.Context) error {
	if err := w.runStatus(ctx, "set search conditions", setConditionsScript, "conditions_set"); err != nil {
		return err
	}
	return sleep(ctx, w.cfg.SettlePause)
}

// ReopenAreaSelection brings the area-selection popup back up for the next
// sibling; the widget forgets deep selection state after each search.
func (w *Widget) ReopenAreaSelection(ctx context.Context) error {
	if err := w.OpenFilterPopup(ctx); err != nil {
		return err
	}
	if err := w.runStatus(ctx, "reopen area selection", reopenAreaScript, "reopened"); err != nil {
		return err
	}
	return sleep(ctx, w.cfg.SettlePause)
}

// Provinces lists the selectable provinces.
func (w *Widget) Provinces(ctx context.Context) ([]domain.RegionOption, error) {
	return ExecuteValue(ctx, w.exec, "list provinces", func(s browser.Session) ([]domain.RegionOption, error) {
		var out []domain.RegionOption
		if err := s.RunScript(provincesScript, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Districts selects a province and lists its districts.
func (w *Widget) Districts(ctx context.Context, provinceValue string) ([]domain.RegionOption, error) {
	script := fmt.Sprintf(selectProvinceScriptFmt, provinceValue, provinceValue)
	if err := w.runStatus(ctx, "select province", script, "province_selected"); err != nil {
		return nil, err
	}
	if err := sleep(ctx, w.cfg.SettlePause); err != nil {
		return nil, err
	}
	return ExecuteValue(ctx, w.exec, "list districts", func(s browser.Session) ([]domain.RegionOption, error) {
		var out []domain.RegionOption
		if err := s.RunScript(districtsScript, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Dongs selects a district and lists its dongs. Dongs carry no value; the
// widget addresses them by position.
func (w *Widget) Dongs(ctx context.Context, districtValue string) ([]domain.RegionOption, error) {
	script := fmt.Sprintf(selectDistrictScriptFmt, districtValue, districtValue)
	if err := w.runStatus(ctx, "select district", script, "district_selected"); err != nil {
		return nil, err
	}
	if err := sleep(ctx, w.cfg.SettlePause); err != nil {
		return nil, err
	}
	return ExecuteValue(ctx, w.exec, "list dongs", func(s browser.Session) ([]domain.RegionOption, error) {
		var out []domain.RegionOption
		if err := s.RunScript(dongsScript, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// SelectDongAndSearch selects the dong at index, confirms the area selection
// and triggers the search. Returns the dong label reported by the page.
func (w *Widget) SelectDongAndSearch(ctx context.Context, index int) (string, error) {
	script := fmt.Sprintf(selectDongScriptFmt, index, index)

	var status string
	err := w.exec.Execute(ctx, "select dong", func(s browser.Session) error {
		return s.RunScript(script, &status)
	})
	if err != nil {
		return "", err
	}
	const prefix = "dong_selected:"
	if len(status) <= len(prefix) || status[:len(prefix)] != prefix {
		return "", fmt.Errorf("select dong %d: %s", index, status)
	}
	name := status[len(prefix):]

	if err := sleep(ctx, w.cfg.SettlePause); err != nil {
		return "", err
	}
	if err := w.runStatus(ctx, "complete area selection", completeSelectionScript, "area_selection_completed"); err != nil {
		return "", err
	}
	if err := sleep(ctx, w.cfg.SettlePause); err != nil {
		return "", err
	}
	if err := w.runStatus(ctx, "execute search", searchScript, "search_executed"); err != nil {
		return "", err
	}
	// Wait for results to render before extraction.
	if err := sleep(ctx, w.cfg.ResultPause); err != nil {
		return "", err
	}
	return name, nil
}

// CountListings reads the result count shown by the page.
func (w *Widget) CountListings(ctx context.Context) (int, error) {
	return ExecuteValue(ctx, w.exec, "count listings", func(s browser.Session) (int, error) {
		var count int
		if err := s.RunScript(countScript, &count); err != nil {
			return 0, err
		}
		return count, nil
	})
}

// ExtractListings pulls every loaded listing in one call, deduplicated
// in-page by (name, address).
func (w *Widget) ExtractListings(ctx context.Context) ([]domain.Listing, error) {
	return ExecuteValue(ctx, w.exec, "extract listings", func(s browser.Session) ([]domain.Listing, error) {
		var out []domain.Listing
		if err := s.RunScript(extractScript, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// ExtractSlice pulls listings [start, start+count) by index.
func (w *Widget) ExtractSlice(ctx context.Context, start, count int) ([]domain.Listing, error) {
	script := fmt.Sprintf(sliceScriptFmt, start, count)
	return ExecuteValue(ctx, w.exec, "extract listing slice", func(s browser.Session) ([]domain.Listing, error) {
		var out []domain.Listing
		if err := s.RunScript(script, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// ReclaimMemory hints the page to release the extracted result set.
func (w *Widget) ReclaimMemory(ctx context.Context) error {
	return w.exec.Execute(ctx, "reclaim page memory", func(s browser.Session) error {
		return s.RunScript(reclaimScript, nil)
	})
}
