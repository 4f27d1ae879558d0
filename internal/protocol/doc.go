// Package protocol implements the host side of the message contract between
// the editor and the sandboxed frame that renders the page.
//
// Messages are plain JSON objects tagged by "type":
//
//	frame -> host   READY, BLOCKS, CLICKED, RECT, LAYOUT_CHANGED, INLINE_EDIT_COMMIT
//	host  -> frame  HYDRATE, LIST_BLOCKS, GET_RECT
//
// Delivery is asynchronous and lossy. A Channel never waits for a reply:
// every answer from the frame is handled as an independent message that may
// refer to state that has since moved on.
package protocol
