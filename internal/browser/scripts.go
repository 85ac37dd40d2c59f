package browser

// The page scripts are plain function expressions evaluated in a frame. Both
// drivers call them with JSON-encoded string arguments.

// walkJS is shared by the scripts: it visits every element of the document and
// of every open shadow root below it.
const walkJS = `
const walk = (root, fn) => {
	const stack = [root];
	while (stack.length) {
		const node = stack.pop();
		const els = node.querySelectorAll('*');
		for (const el of els) {
			fn(el);
			if (el.shadowRoot) stack.push(el.shadowRoot);
		}
	}
};`

// snapshotJS stamps every control, reflects live state into attributes and
// returns the serialized document, shadow roots included.
const snapshotJS = `() => {` + walkJS + `
	const state = window.__jobfill = window.__jobfill || { seq: 0, els: new Map() };
	state.els = new Map();
	const shadowRoots = [];
	const rendered = (el) => {
		if (el.type === 'hidden') return true;
		if (el.offsetParent !== null) return true;
		const style = getComputedStyle(el);
		return style.position === 'fixed' && style.display !== 'none' && style.visibility !== 'hidden';
	};
	walk(document, (el) => {
		if (el.shadowRoot) shadowRoots.push(el.shadowRoot);
		const tag = el.tagName;
		if (tag !== 'INPUT' && tag !== 'SELECT' && tag !== 'TEXTAREA') return;
		let id = el.getAttribute('data-jobfill-id');
		if (!id) {
			id = 'jf' + (++state.seq);
			el.setAttribute('data-jobfill-id', id);
		}
		state.els.set(id, el);
		if (tag === 'SELECT' || tag === 'TEXTAREA' || (el.type !== 'checkbox' && el.type !== 'radio')) {
			el.setAttribute('data-jobfill-value', el.value ?? '');
		}
		if (el.type === 'checkbox' || el.type === 'radio') {
			el.setAttribute('data-jobfill-checked', String(!!el.checked));
		}
		if (rendered(el)) {
			el.removeAttribute('data-jobfill-hidden');
		} else {
			el.setAttribute('data-jobfill-hidden', '');
		}
	});
	const root = document.documentElement;
	if (typeof root.getHTML === 'function') {
		return '<!DOCTYPE html>' + root.getHTML({ serializableShadowRoots: true, shadowRoots });
	}
	return '<!DOCTYPE html>' + root.outerHTML;
}`

// applyJS replays a write journal. Values go through the native setters so
// framework-controlled inputs see the change, then input, change and blur are
// dispatched. It returns the number of writes applied.
const applyJS = `(payload) => {` + walkJS + `
	const writes = JSON.parse(payload);
	const state = window.__jobfill || { els: new Map() };
	const find = (id) => {
		const known = state.els.get(id);
		if (known && known.isConnected) return known;
		let found = null;
		walk(document, (el) => {
			if (!found && el.getAttribute('data-jobfill-id') === id) found = el;
		});
		return found;
	};
	const setter = (el, prop) => {
		let proto = HTMLInputElement.prototype;
		if (el instanceof HTMLTextAreaElement) proto = HTMLTextAreaElement.prototype;
		if (el instanceof HTMLSelectElement) proto = HTMLSelectElement.prototype;
		return Object.getOwnPropertyDescriptor(proto, prop)?.set;
	};
	let applied = 0;
	for (const w of writes) {
		const el = find(w.id);
		if (!el) continue;
		if (w.op === 'checked') {
			const set = setter(el, 'checked');
			set ? set.call(el, !!w.checked) : (el.checked = !!w.checked);
		} else {
			const set = setter(el, 'value');
			set ? set.call(el, w.value ?? '') : (el.value = w.value ?? '');
		}
		for (const type of ['input', 'change', 'blur']) {
			el.dispatchEvent(new Event(type, { bubbles: true }));
		}
		applied++;
	}
	return applied;
}`

// cleanupJS removes the snapshot stamps.
const cleanupJS = `() => {` + walkJS + `
	walk(document, (el) => {
		el.removeAttribute('data-jobfill-id');
		el.removeAttribute('data-jobfill-value');
		el.removeAttribute('data-jobfill-checked');
		el.removeAttribute('data-jobfill-hidden');
	});
	if (window.__jobfill) window.__jobfill.els = new Map();
	return true;
}`

// infoJS returns the page title and the first 1000 characters of body text.
const infoJS = `() => JSON.stringify({
	url: location.href,
	title: document.title || '',
	text: ((document.body && document.body.innerText) || '').slice(0, 1000),
})`

// toastJS shows a transient notification: the success banner, or the "!"
// failure badge. Arguments: JSON {message, kind, ms}.
const toastJS = `(payload) => {
	const t = JSON.parse(payload);
	const id = 'jobfill-notification';
	document.getElementById(id)?.remove();
	const el = document.createElement('div');
	el.id = id;
	const base = 'position:fixed;top:20px;right:20px;z-index:2147483647;color:white;' +
		'font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif;font-weight:500;' +
		'box-shadow:0 4px 12px rgba(0,0,0,0.15);';
	if (t.kind === 'failure') {
		el.style.cssText = base + 'background:#dc3545;width:24px;height:24px;border-radius:12px;' +
			'display:flex;align-items:center;justify-content:center;font-size:16px;';
		el.textContent = '!';
		el.title = t.message;
	} else {
		el.style.cssText = base + 'background:linear-gradient(135deg,#667eea 0%,#764ba2 100%);' +
			'padding:15px 20px;border-radius:8px;font-size:14px;';
		el.textContent = '✓ ' + t.message;
	}
	(document.body || document.documentElement).appendChild(el);
	setTimeout(() => el.remove(), t.ms);
	return true;
}`
