package session

import "strconv"

// fixedEpochMS is the wall-clock instant every session observes:
// 2024-01-01T00:00:00Z. Pinning the clock before any application script runs
// keeps clocks, timestamps, and time-seeded rendering identical across runs.
const fixedEpochMS = 1704067200000

// determinismScript is installed with Page.addScriptToEvaluateOnNewDocument
// so it executes before the application on every navigation, including
// same-session reloads. It pins Date, performance.now, and Math.random.
//
// Math.random is replaced with a small xorshift generator seeded from a
// constant, so sequences are reproducible but still well distributed.
// performance.now becomes a monotone counter advancing 1ms per call, which
// is enough for the shell's animation gating without reintroducing real time.
var determinismScript = `(() => {
	const fixedNow = ` + strconv.FormatInt(fixedEpochMS, 10) + `;

	const RealDate = Date;
	class FixedDate extends RealDate {
		constructor(...args) {
			if (args.length === 0) {
				super(fixedNow);
			} else {
				super(...args);
			}
		}
		static now() { return fixedNow; }
	}
	FixedDate.parse = RealDate.parse;
	FixedDate.UTC = RealDate.UTC;
	window.Date = FixedDate;

	let perfTick = 0;
	const perfNow = () => { perfTick += 1; return perfTick; };
	try {
		Object.defineProperty(performance, 'now', { value: perfNow });
	} catch (e) { /* locked down; keep native clock */ }

	let randState = 0x9e3779b9 >>> 0;
	Math.random = () => {
		randState ^= randState << 13; randState >>>= 0;
		randState ^= randState >> 17;
		randState ^= randState << 5; randState >>>= 0;
		return randState / 0x100000000;
	};
})();`

// freezeAnimationsCSS is injected after first paint. Combined with the
// emulated prefers-reduced-motion media feature it removes transition and
// animation timing from captured pixels.
const freezeAnimationsCSS = `*, *::before, *::after {
	animation-duration: 0s !important;
	animation-delay: 0s !important;
	transition-duration: 0s !important;
	transition-delay: 0s !important;
	caret-color: transparent !important;
}`

// storageSeedScript produces an init script that plants one localStorage key
// before the application boots. Seeding pre-navigation means the app reads
// the value on first load instead of needing a reload.
func storageSeedScript(key, value string) string {
	return `try { localStorage.setItem(` +
		jsString(key) + `, ` + jsString(value) +
		`); } catch (e) {}`
}
