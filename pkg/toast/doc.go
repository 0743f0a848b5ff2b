// Package toast turns outcomes into short user-facing notifications.
//
// A toast is dispatched through an Emitter under EventName. The gateway's
// websocket hub is the usual emitter: every toast becomes a "toast" frame
// that the browser renders with whatever toast library it likes:
//
//	window.addEventListener("storefront:toast", (e) => {
//	    const { level, message, title } = e.detail;
//	    showToast(level, message);
//	});
//
// Errors from explicit user actions are shown with Fail, which uses the
// server's message when there is one:
//
//	if _, err := cart.Checkout(ctx, client); err != nil {
//	    toast.Fail(hub, err)
//	    return
//	}
//	toast.Success(hub, "Order placed")
package toast
