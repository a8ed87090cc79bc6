package chrome

import (
	"encoding/json"
)

// Selectors anchored on the screener's stable data attributes.
const (
	rowSelector          = `tr[data-testid="data-table-v2-row"]`
	regionButtonSelector = `button[data-ylk*="slk:Region"]`
	regionOptionSelector = `input[data-testid^="filter-option-"]`
	nextPageSelector     = `button[data-testid="next-page-button"]`
)

// tableMarkupJS extracts only the table element enclosing the data
// rows, falling back to the whole document when it cannot be isolated.
const tableMarkupJS = `(() => {
	const row = document.querySelector('tr[data-testid="data-table-v2-row"]');
	if (row) {
		const table = row.closest('table');
		if (table) {
			return table.outerHTML;
		}
	}
	return document.documentElement.outerHTML;
})()`

// hasNextPageJS reports whether an enabled next-page control exists.
const hasNextPageJS = `(() => {
	const btn = document.querySelector('button[data-testid="next-page-button"]');
	return !!btn && !btn.disabled;
})()`

// firstSymbolJS reads the first row's ticker, used to detect page
// transitions.
const firstSymbolJS = `(() => {
	const el = document.querySelector(
		'tr[data-testid="data-table-v2-row"] td[data-testid-cell="ticker"] span.symbol');
	return el ? el.textContent.trim() : '';
})()`

// totalLabelJS reads the pagination total label, the secondary page
// transition signal.
const totalLabelJS = `(() => {
	const el = document.querySelector('div.paginationContainer div.total');
	return el ? el.textContent.trim() : '';
})()`

// availableRegionsJS samples the filter vocabulary for error messages.
const availableRegionsJS = `(() => {
	const names = [];
	for (const label of document.querySelectorAll('div.options label')) {
		const name = (label.getAttribute('title') || label.textContent || '').trim();
		if (name) { names.push(name); }
		if (names.length >= 15) { break; }
	}
	return names;
})()`

// clickApplyJS confirms the filter selection.
const clickApplyJS = `(() => {
	for (const btn of document.querySelectorAll('button')) {
		if (btn.textContent.trim() === 'Apply' && !btn.disabled) {
			btn.click();
			return true;
		}
	}
	return false;
})()`

// selectRegionJS unchecks any preselected regions, then checks the
// option whose label matches the requested region (by title text, or by
// country code for short inputs). Returns whether a match was found.
func selectRegionJS(region string) string {
	quoted, _ := json.Marshal(region)
	return `(() => {
	const region = ` + string(quoted) + `.trim().toLowerCase();
	const options = document.querySelector('div.options');
	if (!options) { return false; }
	for (const checked of options.querySelectorAll('input[type="checkbox"]:checked')) {
		checked.click();
	}
	for (const label of options.querySelectorAll('label')) {
		const name = (label.getAttribute('title') || label.textContent || '').trim().toLowerCase();
		if (name === region) {
			const box = label.querySelector('input[type="checkbox"]');
			if (box) { box.click(); return true; }
		}
	}
	if (region.length <= 3) {
		const box = options.querySelector('input[data-testid="filter-option-' + region + '"]');
		if (box) { box.click(); return true; }
	}
	return false;
})()`
}

// tableUpdatedJS is polled after applying the region filter until the
// table shows the filtered result set: the leading symbol changed, the
// total label changed, or the first row's region column matches.
func tableUpdatedJS(region, prevFirst, prevTotal string) string {
	quotedRegion, _ := json.Marshal(region)
	quotedFirst, _ := json.Marshal(prevFirst)
	quotedTotal, _ := json.Marshal(prevTotal)
	return `(() => {
	const region = ` + string(quotedRegion) + `.toLowerCase();
	const prevFirst = ` + string(quotedFirst) + `;
	const prevTotal = ` + string(quotedTotal) + `;
	const firstEl = document.querySelector(
		'tr[data-testid="data-table-v2-row"] td[data-testid-cell="ticker"] span.symbol');
	const first = firstEl ? firstEl.textContent.trim() : '';
	if (first && prevFirst && first !== prevFirst) { return true; }
	const totalEl = document.querySelector('div.paginationContainer div.total');
	const total = totalEl ? totalEl.textContent.trim() : '';
	if (total && prevTotal && total !== prevTotal) { return true; }
	const regionEl = document.querySelector(
		'tr[data-testid="data-table-v2-row"] td[data-testid-cell="region"]');
	const rowRegion = regionEl ? regionEl.textContent.trim().toLowerCase() : '';
	return !!rowRegion && rowRegion === region;
})()`
}

// pageChangedJS is polled after a next-page click until the table shows
// a different page.
func pageChangedJS(prevFirst, prevTotal string) string {
	quotedFirst, _ := json.Marshal(prevFirst)
	quotedTotal, _ := json.Marshal(prevTotal)
	return `(() => {
	const prevFirst = ` + string(quotedFirst) + `;
	const prevTotal = ` + string(quotedTotal) + `;
	const firstEl = document.querySelector(
		'tr[data-testid="data-table-v2-row"] td[data-testid-cell="ticker"] span.symbol');
	const first = firstEl ? firstEl.textContent.trim() : '';
	if (prevFirst) { return !!first && first !== prevFirst; }
	const totalEl = document.querySelector('div.paginationContainer div.total');
	const total = totalEl ? totalEl.textContent.trim() : '';
	if (prevTotal) { return !!total && total !== prevTotal; }
	return false;
})()`
}
