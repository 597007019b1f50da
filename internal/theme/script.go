package theme

// BootstrapScript is inlined into <head> ahead of any stylesheet so the
// effective theme is resolved before first paint. It mirrors NewRuntime:
// persisted preference wins, the system color scheme is the fallback.
const BootstrapScript = `(() => {
  let mode = null;
  try { mode = localStorage.getItem('themekit-theme'); } catch (_) {}
  if (mode !== 'light' && mode !== 'dark') {
    mode = window.matchMedia && window.matchMedia('(prefers-color-scheme: dark)').matches ? 'dark' : 'light';
  }
  document.documentElement.setAttribute('data-theme', mode);
})();`

// RuntimeScript wires the toggle controls. It mirrors Runtime.Update: the
// theme toggle applies the attribute first and persists synchronously, a
// failed write is silently dropped; the nav toggle is never persisted.
const RuntimeScript = `(() => {
  const root = document.documentElement;
  function toggleTheme() {
    const next = root.getAttribute('data-theme') === 'dark' ? 'light' : 'dark';
    root.setAttribute('data-theme', next);
    try { localStorage.setItem('themekit-theme', next); } catch (_) {}
  }
  function toggleNav() {
    root.toggleAttribute('data-nav-open');
  }
  document.addEventListener('click', (e) => {
    if (e.target.closest('[data-theme-toggle]')) toggleTheme();
    if (e.target.closest('[data-nav-toggle]')) toggleNav();
  });
})();`
