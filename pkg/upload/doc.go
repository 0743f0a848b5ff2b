// Package upload reads files that browsers post to the gateway:
// certification documents on registration and product photos.
//
// A form is parsed once with ParseForm, which caps the request body, and
// each file field is read with Read. The file type is taken from the
// content (http.DetectContentType), never from the part's Content-Type
// header, and checked against Config.AllowedTypes.
//
//	if err := upload.ParseForm(w, r, upload.Documents()); err != nil {
//	    return err
//	}
//	cert, err := upload.Read(r, "certification", upload.Documents())
//	if err != nil {
//	    return err
//	}
//	if cert != nil {
//	    reg.Certification = cert.Attachment()
//	}
package upload
