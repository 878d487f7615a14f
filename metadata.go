// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package pdfextract

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rayfred90/file-to-md-json/logger"
)

// Meta is the descriptive metadata of a document, XMP taking precedence over
// the /Info dictionary.
type Meta struct {
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Keywords     string `json:"keywords,omitempty"`
	Creator      string `json:"creator,omitempty"`
	Producer     string `json:"producer,omitempty"`
	CreationDate string `json:"creationDate,omitempty"`
	ModDate      string `json:"modDate,omitempty"`
}

// merge fills empty fields of m from fallback.
func (m Meta) merge(fallback Meta) Meta {
	return Meta{
		Title:        prefer(m.Title, fallback.Title),
		Author:       prefer(m.Author, fallback.Author),
		Subject:      prefer(m.Subject, fallback.Subject),
		Keywords:     prefer(m.Keywords, fallback.Keywords),
		Creator:      prefer(m.Creator, fallback.Creator),
		Producer:     prefer(m.Producer, fallback.Producer),
		CreationDate: prefer(m.CreationDate, fallback.CreationDate),
		ModDate:      prefer(m.ModDate, fallback.ModDate),
	}
}

// apply writes the descriptive keys into result metadata.
func (m Meta) apply(md map[string]any) {
	md[MetaTitle] = m.Title
	md[MetaAuthor] = m.Author
	md[MetaSubject] = m.Subject
	md[MetaCreator] = m.Creator
	if m.Producer != "" {
		md[MetaProducer] = m.Producer
	}
}

// Report is the structural metadata summary printed by the CLI.
type Report struct {
	Meta
	PDFVersion string `json:"pdf:PDFVersion,omitempty"`
	HasXMP     bool   `json:"pdf:hasXMP"`
	Encrypted  bool   `json:"pdf:encrypted"`
	NPages     int    `json:"xmpTPg:NPages,omitempty"`
	// ExtractContent is false when the security handler forbids text copy.
	ExtractContent bool `json:"extract_content"`
}

// Minimal XML model for the XMP fields we surface.
type xmpPacket struct {
	XMLName xml.Name `xml:"xmpmeta"`
	RDF     struct {
		Descriptions []rdfDescription `xml:"http://www.w3.org/1999/02/22-rdf-syntax-ns# Description"`
	} `xml:"http://www.w3.org/1999/02/22-rdf-syntax-ns# RDF"`
}

type rdfDescription struct {
	Title       rdfList `xml:"http://purl.org/dc/elements/1.1/ title"`
	Description rdfList `xml:"http://purl.org/dc/elements/1.1/ description"`
	Creator     rdfList `xml:"http://purl.org/dc/elements/1.1/ creator"`

	Producer string `xml:"http://ns.adobe.com/pdf/1.3/ Producer"`
	Keywords string `xml:"http://ns.adobe.com/pdf/1.3/ Keywords"`

	CreatorTool string `xml:"http://ns.adobe.com/xap/1.0/ CreatorTool"`
	CreateDate  string `xml:"http://ns.adobe.com/xap/1.0/ CreateDate"`
	ModifyDate  string `xml:"http://ns.adobe.com/xap/1.0/ ModifyDate"`
}

type rdfContainer struct {
	LI []string `xml:"http://www.w3.org/1999/02/22-rdf-syntax-ns# li"`
}

// rdfList covers rdf:Alt, rdf:Seq and rdf:Bag containers alike.
type rdfList struct {
	Alt rdfContainer `xml:"http://www.w3.org/1999/02/22-rdf-syntax-ns# Alt"`
	Seq rdfContainer `xml:"http://www.w3.org/1999/02/22-rdf-syntax-ns# Seq"`
	Bag rdfContainer `xml:"http://www.w3.org/1999/02/22-rdf-syntax-ns# Bag"`
}

func (l rdfList) first() string {
	for _, items := range [][]string{l.Alt.LI, l.Seq.LI, l.Bag.LI} {
		for _, it := range items {
			if it = strings.TrimSpace(it); it != "" {
				return it
			}
		}
	}
	return ""
}

// prefer returns a if non-empty after trimming, otherwise b.
func prefer(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

// readInfo extracts metadata stored in the /Info dictionary.
func (d *pdfDocument) readInfo() Meta {
	info := d.r.Trailer().Key("Info")
	return Meta{
		Title:        info.Key("Title").Text(),
		Author:       info.Key("Author").Text(),
		Subject:      info.Key("Subject").Text(),
		Keywords:     info.Key("Keywords").Text(),
		Creator:      info.Key("Creator").Text(),
		Producer:     info.Key("Producer").Text(),
		CreationDate: info.Key("CreationDate").Text(),
		ModDate:      info.Key("ModDate").Text(),
	}
}

// readXMP returns the raw XMP packet from /Root/Metadata, or "" if absent.
func (d *pdfDocument) readXMP() (string, error) {
	md := d.r.Trailer().Key("Root").Key("Metadata")
	if md.Kind() != pdf.Stream {
		return "", nil
	}
	rc := md.Reader()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		logger.Error("readXMP: failed to read XMP stream", "err", err)
		return "", err
	}
	return string(b), nil
}

// Metadata returns descriptive metadata with XMP taking precedence over /Info.
func (d *pdfDocument) Metadata() (Meta, error) {
	info := d.readInfo()
	packet, err := d.readXMP()
	if err != nil {
		return Meta{}, err
	}
	if packet == "" {
		return info, nil
	}
	xmp, ok := parseXMP(packet)
	if !ok {
		xmp = parseXMPFallback(packet)
	}
	return xmp.merge(info), nil
}

// parseXMP decodes an XMP packet with encoding/xml.
func parseXMP(packet string) (Meta, bool) {
	var pkt xmpPacket
	dec := xml.NewDecoder(strings.NewReader(packet))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity
	if err := dec.Decode(&pkt); err != nil {
		return Meta{}, false
	}

	var m Meta
	for _, desc := range pkt.RDF.Descriptions {
		m = Meta{
			Title:        desc.Title.first(),
			Author:       desc.Creator.first(),
			Subject:      desc.Description.first(),
			Keywords:     strings.TrimSpace(desc.Keywords),
			Creator:      strings.TrimSpace(desc.CreatorTool),
			Producer:     strings.TrimSpace(desc.Producer),
			CreationDate: strings.TrimSpace(desc.CreateDate),
			ModDate:      strings.TrimSpace(desc.ModifyDate),
		}.merge(m)
	}
	return m, true
}

// parseXMPFallback searches for well-known tags when the packet is not XML.
func parseXMPFallback(packet string) Meta {
	get := func(tags ...string) string {
		for _, t := range tags {
			open, close := "<"+t+">", "</"+t+">"
			i := strings.Index(packet, open)
			if i < 0 {
				continue
			}
			rest := packet[i+len(open):]
			if j := strings.Index(rest, close); j >= 0 {
				return strings.TrimSpace(stripXMLTags(rest[:j]))
			}
		}
		return ""
	}
	return Meta{
		Title:        get("dc:title", "pdf:Title"),
		Author:       get("dc:creator", "pdf:Author"),
		Subject:      get("dc:description", "pdf:Subject"),
		Keywords:     get("pdf:Keywords"),
		Creator:      get("xmp:CreatorTool"),
		Producer:     get("pdf:Producer"),
		CreationDate: get("xmp:CreateDate"),
		ModDate:      get("xmp:ModifyDate"),
	}
}

// stripXMLTags removes simple XML tags from a string.
func stripXMLTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch r {
		case '<':
			inTag = true
		case '>':
			inTag = false
		default:
			if !inTag {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// headerVersion returns the version from the %PDF- header line.
func headerVersion(ra io.ReaderAt) string {
	buf := make([]byte, 1024)
	n, _ := ra.ReadAt(buf, 0)
	line := string(buf[:n])
	i := strings.Index(line, "%PDF-")
	if i < 0 {
		return ""
	}
	line = line[i+len("%PDF-"):]
	if j := strings.IndexAny(line, "\r\n \t%"); j >= 0 {
		line = line[:j]
	}
	return line
}

// Report builds the structural metadata summary.
func (d *pdfDocument) Report() (Report, error) {
	meta, err := d.Metadata()
	if err != nil {
		return Report{}, err
	}
	enc := d.r.Trailer().Key("Encrypt")
	rep := Report{
		Meta:           meta,
		PDFVersion:     headerVersion(d.f),
		HasXMP:         d.r.Trailer().Key("Root").Key("Metadata").Kind() == pdf.Stream,
		Encrypted:      enc.Kind() == pdf.Dict,
		NPages:         d.r.NumPage(),
		ExtractContent: true,
	}
	if rep.Encrypted {
		// P bit 5 grants content extraction.
		rep.ExtractContent = uint32(enc.Key("P").Int64())&(1<<4) != 0
	}
	return rep, nil
}

// WriteReport writes the report for the PDF at path as indented JSON.
func WriteReport(path string, w io.Writer) error {
	doc, err := OpenDocument(path)
	if err != nil {
		return err
	}
	defer doc.Close()

	rep, err := doc.(*pdfDocument).Report()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
