// Package browser defines the browser session used by the wizard navigator
// and implements it with chromedp.
//
// The Browser interface exposes only what the navigator and harvester need:
// navigation, locating elements by a model.Selector, the three click
// strategies of the resilient clicker, and reads of the location, cookies,
// user agent and page source. Screenshots exist for diagnostics only.
package browser
